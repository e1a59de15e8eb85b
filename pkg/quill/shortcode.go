// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package quill

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/quillcms/quill/pkg/hook"
)

// shortcodeLexer tokenizes content with embedded [tag key="value"]
// shortcodes. Bracket contents need their own token rules, so the
// lexer switches state on '['.
var shortcodeLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Text", Pattern: `[^\[]+`},
		{Name: "Open", Pattern: `\[`, Action: lexer.Push("Tag")},
	},
	"Tag": {
		{Name: "Close", Pattern: `\]`, Action: lexer.Pop()},
		{Name: "String", Pattern: `"[^"]*"`},
		{Name: "Eq", Pattern: `=`},
		{Name: "Ident", Pattern: `[a-z][a-z0-9_-]*`},
		{Name: "whitespace", Pattern: `[ \t]+`},
	},
})

// shortcodeDoc is content split into literal text and shortcode tags.
type shortcodeDoc struct {
	Parts []shortcodePart `parser:"@@*"`
}

type shortcodePart struct {
	Tag  *shortcodeTag `parser:"  @@"`
	Text string        `parser:"| @Text"`
}

// shortcodeTag matches: "[" name (key "=" value)* "]"
type shortcodeTag struct {
	Name  string          `parser:"Open @Ident"`
	Attrs []shortcodeAttr `parser:"@@* Close"`
}

type shortcodeAttr struct {
	Key   string `parser:"@Ident Eq"`
	Value string `parser:"@String"`
}

// raw reconstructs the original bracket text for unhandled tags.
func (t *shortcodeTag) raw() string {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(t.Name)
	for _, a := range t.Attrs {
		fmt.Fprintf(&sb, " %s=%q", a.Key, a.Value)
	}
	sb.WriteByte(']')
	return sb.String()
}

// shortcodeParser is the singleton participle parser instance.
var shortcodeParser = participle.MustBuild[shortcodeDoc](
	participle.Lexer(shortcodeLexer),
	participle.Elide("whitespace"),
	participle.Unquote("String"),
)

// Dispatcher is the dispatch surface ExpandShortcodes needs. A
// *hook.Registry satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, hookName string, payload any) (*hook.Result, error)
}

// ExpandShortcodes replaces every [tag key="value"] occurrence in
// content with the result of dispatching the shortcode.<tag> filter.
// Tags without a defined hook or registered handler are emitted
// unchanged, as is content whose bracket sequences do not parse as
// shortcodes at all.
func ExpandShortcodes(ctx context.Context, d Dispatcher, content string) (string, error) {
	if !strings.Contains(content, "[") {
		return content, nil
	}

	doc, err := shortcodeParser.ParseString("", content)
	if err != nil {
		// Stray brackets are ordinary prose, not an error.
		return content, nil
	}

	var sb strings.Builder
	for _, part := range doc.Parts {
		if part.Tag == nil {
			sb.WriteString(part.Text)
			continue
		}

		tag := part.Tag
		raw := tag.raw()
		attrs := make(map[string]string, len(tag.Attrs))
		for _, a := range tag.Attrs {
			attrs[a.Key] = a.Value
		}

		res, derr := d.Dispatch(ctx, ShortcodeHook(tag.Name), ShortcodePayload{
			Tag:   tag.Name,
			Attrs: attrs,
			Raw:   raw,
		})
		if derr != nil {
			if hook.ErrorCode(derr) == hook.CodeUnknownHook {
				sb.WriteString(raw)
				continue
			}
			return content, derr
		}
		if len(res.Outcomes) == 0 {
			sb.WriteString(raw)
			continue
		}
		if out, ok := res.Payload.(string); ok {
			sb.WriteString(out)
		} else {
			sb.WriteString(raw)
		}
	}
	return sb.String(), nil
}
