package generate

import "strings"

// Profile is one named instruction configuration for the text backend. Each
// profile binds a system instruction, a post-processing step for the raw
// response, and a caching rule.
type Profile struct {
	Name   string
	System string

	// CacheRead: when the target artifact is already non-empty, skip the
	// remote call and return the stored content (rendered from Markdown).
	// Profiles without it always call and append: outline and section
	// calls accumulate into a shared file within one assembly and must not
	// short-circuit.
	CacheRead bool

	PostProcess func(string) string
}

var Summary = Profile{
	Name:      "summary",
	CacheRead: true,
	System: "You are going to only answer in html format. You'll start with an 'h2' tag and continue through. " +
		"Do not end with a closing body tag. The tone should be conversational at an 8th grade (14 year old) " +
		"reading level and should never use the word 'delve' or its variants, 'moreover', 'furthermore' or " +
		"anything like that. Keep in mind, these videos are from my perspective so don't use terms like " +
		"'presenter' or 'speaker' because I'm the one speaking. We'll assume the audience is already familiar " +
		"with me as the presenter so don't include any summaries of their information during the introduction.",
	PostProcess: func(s string) string { return s },
}

var BlogOutline = Profile{
	Name: "blog-outline",
	System: "Based on this transcript, I'm going to write a blog post. I'll start with an introduction, then " +
		"move on to the body which will touch on each of the topics in the transcript, and finally, I'll end " +
		"with a conclusion. The tone should be conversational at an 8th grade (14 year old) reading level and " +
		"should never use the word 'delve' or its variants, 'moreover', 'furthermore' or anything like that. " +
		"Keep in mind, these videos are from my perspective so don't use terms like 'presenter' or 'speaker' " +
		"because I'm the one speaking. We'll assume the audience is already familiar with the presenter so " +
		"don't include any summaries of them. Give me a list of the sections for the blog post and return " +
		"them to me as a list so I can have you iterate through them in later prompts. Do not include " +
		"anything in your response other than the sections.",
	PostProcess: stripListPrefixes,
}

var BlogSection = Profile{
	Name: "blog-section",
	System: "Based on the transcript and the section outline you created, let's write a blog post. Remember, " +
		"the tone should be conversational at an 8th grade (14 year old) reading level and should never use " +
		"the word 'delve' or its variants, 'moreover', 'furthermore' or anything like that. Don't start " +
		"sections with anything like 'hey there' or 'hi' because we are just continuing the blog post. Keep " +
		"in mind, these videos are from my perspective so don't use terms like 'presenter' or 'speaker' " +
		"because I'm the one speaking. Put it in an html format starting with an h2 tag, but don't end with " +
		"a closing body tag.",
	PostProcess: stripCodeFences,
}

// stripListPrefixes removes the numbering/bullet prefix the model puts on
// each outline line (the leading two characters) and rejoins the lines.
func stripListPrefixes(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		if len(line) >= 2 {
			lines[i] = line[2:]
		} else {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

// stripCodeFences drops literal markdown fence markers the model sometimes
// wraps HTML sections in.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```html\n", "")
	return strings.ReplaceAll(s, "```", "")
}
