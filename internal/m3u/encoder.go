package m3u

import (
	"io"
	"strings"
)

// Encode generates an extended M3U playlist for channels.
func Encode(channels []Channel) string {
	var sb strings.Builder

	// strings.Builder never returns a write error.
	_ = Write(&sb, channels)

	return sb.String()
}

// Write streams an extended M3U playlist for channels to w.
func Write(w io.Writer, channels []Channel) error {
	var sb strings.Builder

	sb.WriteString("#EXTM3U\n")

	for _, ch := range channels {
		sb.WriteString("#EXTINF:-1")

		if ch.TVGID != "" {
			writeAttribute(&sb, "tvg-id", ch.TVGID)
		}

		if ch.Logo != "" {
			writeAttribute(&sb, "tvg-logo", ch.Logo)
		}

		writeAttribute(&sb, "group-title", ch.Group)

		sb.WriteString(",")
		sb.WriteString(ch.Name)
		sb.WriteString("\n")
		sb.WriteString(ch.URL)
		sb.WriteString("\n")

		// Flush every 64KiB.
		if sb.Len() >= 64*1024 {
			if _, err := io.WriteString(w, sb.String()); err != nil {
				return err
			}

			sb.Reset()
		}
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

func writeAttribute(sb *strings.Builder, key, value string) {
	sb.WriteString(" ")
	sb.WriteString(key)
	sb.WriteString(`="`)
	sb.WriteString(strings.ReplaceAll(value, `"`, "'"))
	sb.WriteString(`"`)
}
