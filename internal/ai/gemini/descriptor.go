package gemini

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/arashthr/lodekeep/internal/ai"
)

const describePrompt = `You are an expert at classifying web content for a bookmark manager. Analyze the provided page context and return FOUR separate outputs using the following structured format:

===TAGS===
[comma,separated,list,of,exactly,three,tags]
===END TAGS===

===CATEGORY===
[A single category name]
===END CATEGORY===

===TITLE===
[The page title]
===END TITLE===

===DESCRIPTION===
[A one or two sentence description of the page]
===END DESCRIPTION===

Instructions for each output:

TAGS:
- Generate exactly 3 tags: 1 content-format tag followed by 2 subject-matter tags
- The format tag is one of: article, tutorial, documentation, video, tool, library, course, blog, news, reference, guide
- Subject tags describe the topic (e.g. programming, web-dev, ai-ml, business, design)
- Use lowercase, hyphenate multi-word tags, separate with commas, no spaces after commas

CATEGORY:
- One short human-readable category such as Tech, Science, Business, Design, Finance, Health, Culture
- Use "Uncategorized" only when nothing can be inferred

TITLE:
- Use the provided title when present; otherwise infer a sensible title from the URL and domain
- Leave the section empty if no title can be inferred at all

DESCRIPTION:
- Use the provided description when present; otherwise summarize the content
- Leave the section empty when there is nothing to describe

Page context:
`

// Describe generates tags, a category and title/description for a page.
// When the input has no content (failed scrape), only the URL and domain
// are offered to the model.
func (c *Client) Describe(ctx context.Context, input ai.DescribeInput) (*ai.Descriptor, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\nDomain: %s\n", input.URL, input.Domain)
	if input.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", input.Title)
	}
	if input.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", input.Description)
	}
	if input.Content != "" {
		fmt.Fprintf(&b, "Content preview:\n%s\n", truncate(input.Content, 8000))
	} else {
		b.WriteString("No page content is available; classify from the URL and domain alone.\n")
	}

	responseText, err := c.generate(ctx, describePrompt+b.String())
	if err != nil {
		return nil, err
	}
	return parseDescriptorResponse(responseText), nil
}

var (
	tagsRe        = regexp.MustCompile(`(?s)===TAGS===\n(.*?)\n===END TAGS===`)
	categoryRe    = regexp.MustCompile(`(?s)===CATEGORY===\n(.*?)\n===END CATEGORY===`)
	titleRe       = regexp.MustCompile(`(?s)===TITLE===\n(.*?)\n===END TITLE===`)
	descriptionRe = regexp.MustCompile(`(?s)===DESCRIPTION===\n(.*?)\n===END DESCRIPTION===`)
)

func parseDescriptorResponse(responseText string) *ai.Descriptor {
	descriptor := &ai.Descriptor{
		Tags:     []string{},
		Category: "Uncategorized",
	}

	if match := tagsRe.FindStringSubmatch(responseText); len(match) > 1 {
		for _, tag := range strings.Split(match[1], ",") {
			if cleaned := cleanTag(tag); cleaned != "" {
				descriptor.Tags = append(descriptor.Tags, cleaned)
			}
		}
	}
	if match := categoryRe.FindStringSubmatch(responseText); len(match) > 1 {
		if category := strings.TrimSpace(match[1]); category != "" {
			descriptor.Category = category
		}
	}
	if match := titleRe.FindStringSubmatch(responseText); len(match) > 1 {
		descriptor.Title = strings.TrimSpace(match[1])
	}
	if match := descriptionRe.FindStringSubmatch(responseText); len(match) > 1 {
		descriptor.Description = strings.TrimSpace(match[1])
	}
	return descriptor
}
