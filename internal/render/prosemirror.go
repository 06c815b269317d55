package render

import (
	"fmt"
	"html"
	"strings"

	"grimoire/internal/entity"
	"grimoire/internal/refcodec"
)

// FromProseMirror converts editor JSON (as produced by json.Unmarshal into
// interface{}) into a RichDocument. Mention and image nodes become canonical
// reference and image tokens.
func FromProseMirror(doc interface{}) string {
	if doc == nil {
		return ""
	}

	root, ok := doc.(map[string]interface{})
	if !ok {
		return ""
	}

	return renderNode(root)
}

func renderNode(node map[string]interface{}) string {
	nodeType, _ := node["type"].(string)
	if nodeType == "" {
		return ""
	}

	switch nodeType {
	case "doc":
		return renderContent(node["content"])
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>", renderContent(node["content"]))
	case "heading":
		level := 1
		if attrs, ok := node["attrs"].(map[string]interface{}); ok {
			if lvl, ok := attrs["level"].(float64); ok && lvl >= 1 && lvl <= 6 {
				level = int(lvl)
			}
		}
		return fmt.Sprintf("<h%d>%s</h%d>", level, renderContent(node["content"]), level)
	case "bulletList":
		return fmt.Sprintf("<ul>%s</ul>", renderContent(node["content"]))
	case "orderedList":
		return fmt.Sprintf("<ol>%s</ol>", renderContent(node["content"]))
	case "listItem":
		return fmt.Sprintf("<li>%s</li>", renderContent(node["content"]))
	case "blockquote":
		return fmt.Sprintf("<blockquote>%s</blockquote>", renderContent(node["content"]))
	case "text":
		text, _ := node["text"].(string)
		marks, _ := node["marks"].([]interface{})
		return renderTextWithMarks(text, marks)
	case "hardBreak":
		return "<br>"
	case "horizontalRule":
		return "<hr>"
	case "mention":
		attrs, _ := node["attrs"].(map[string]interface{})
		id := stringAttr(attrs, "id")
		if id == "" {
			return ""
		}
		return refcodec.Encode(entity.ParseOrDefault(stringAttr(attrs, "entityType")), id, stringAttr(attrs, "label"))
	case "image":
		attrs, _ := node["attrs"].(map[string]interface{})
		src := stringAttr(attrs, "src")
		if src == "" {
			return ""
		}
		return refcodec.EncodeImage(src)
	default:
		return renderContent(node["content"])
	}
}

func renderContent(content interface{}) string {
	items, ok := content.([]interface{})
	if !ok {
		return ""
	}

	var result strings.Builder
	for _, item := range items {
		if node, ok := item.(map[string]interface{}); ok {
			result.WriteString(renderNode(node))
		}
	}
	return result.String()
}

func renderTextWithMarks(text string, marks []interface{}) string {
	if text == "" {
		return ""
	}

	htmlText := html.EscapeString(text)

	// Apply marks from outside in
	for i := len(marks) - 1; i >= 0; i-- {
		mark, ok := marks[i].(map[string]interface{})
		if !ok {
			continue
		}
		markType, _ := mark["type"].(string)

		switch markType {
		case "bold":
			htmlText = fmt.Sprintf("<strong>%s</strong>", htmlText)
		case "italic":
			htmlText = fmt.Sprintf("<em>%s</em>", htmlText)
		case "code":
			htmlText = fmt.Sprintf("<code>%s</code>", htmlText)
		case "link":
			attrs, _ := mark["attrs"].(map[string]interface{})
			htmlText = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(stringAttr(attrs, "href")), htmlText)
		case "strike":
			htmlText = fmt.Sprintf("<s>%s</s>", htmlText)
		case "underline":
			htmlText = fmt.Sprintf("<u>%s</u>", htmlText)
		}
	}

	return htmlText
}

func stringAttr(attrs map[string]interface{}, key string) string {
	if attrs == nil {
		return ""
	}
	value, _ := attrs[key].(string)
	return value
}
