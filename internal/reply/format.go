package reply

import (
	"strings"

	"github.com/kenshaw/emoji"
)

// Channel is the transport a reply is rendered for.
type Channel string

const (
	// ChannelWeb renders line breaks as <br> for the demo web widget.
	ChannelWeb Channel = "web"
	// ChannelPlain keeps newlines (Telegram, WhatsApp, CLI).
	ChannelPlain Channel = "plain"
)

// Format expands :emoji_alias: codes and encodes line breaks for ch.
func Format(text string, ch Channel) string {
	text = emoji.ReplaceAliases(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, "\r\n", "\n")
	switch ch {
	case ChannelWeb:
		return strings.ReplaceAll(text, "\n", "<br>")
	default:
		return strings.ReplaceAll(text, "<br>", "\n")
	}
}

// Bullets renders lines as a "• " list.
func Bullets(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(l)
	}
	return b.String()
}
