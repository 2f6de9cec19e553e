package runtime

import (
	"chatter/domain"
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// detectMediaKind infers the coarse media kind ("image", "video", "audio",
// "file") when the client omitted it. For data URLs the payload prefix is
// sniffed; for plain URLs only the declared mime, if any, is usable.
func detectMediaKind(media *domain.Media) string {
	url := media.URL
	if !strings.HasPrefix(url, "data:") {
		return "file"
	}

	rest := strings.TrimPrefix(url, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "file"
	}

	var mime string
	if strings.HasSuffix(meta, ";base64") {
		// A few hundred bytes are enough for magic-number detection.
		sample := payload
		if len(sample) > 512 {
			sample = sample[:512]
		}
		if raw, err := base64.StdEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(sample, "=")); err == nil {
			mime = mimetype.Detect(raw).String()
		}
	}
	if mime == "" {
		mime, _, _ = strings.Cut(meta, ";")
	}

	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	default:
		return "file"
	}
}
