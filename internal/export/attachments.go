package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"routekeeper/internal/timeline"
)

// attachment is a decoded binary payload ready to be written to a bundle.
type attachment struct {
	data      []byte
	mediaType string
	extension string
}

var errNotDataURL = errors.New("payload is neither a data URL nor base64")

// decodeAttachment accepts "data:<type>;base64,<data>" URLs and bare base64.
// The declared media type wins; otherwise the bytes are sniffed.
func decodeAttachment(payload string) (attachment, error) {
	payload = strings.TrimSpace(payload)
	declared := ""
	body := payload
	if strings.HasPrefix(payload, "data:") {
		meta, data, ok := strings.Cut(payload[len("data:"):], ",")
		if !ok {
			return attachment{}, errNotDataURL
		}
		params := strings.Split(meta, ";")
		declared = strings.ToLower(strings.TrimSpace(params[0]))
		isBase64 := false
		for _, p := range params[1:] {
			if strings.EqualFold(strings.TrimSpace(p), "base64") {
				isBase64 = true
			}
		}
		if !isBase64 {
			return attachment{}, fmt.Errorf("data URL is not base64 encoded")
		}
		body = data
	}
	raw, err := decodeBase64(body)
	if err != nil {
		return attachment{}, fmt.Errorf("%w: %v", errNotDataURL, err)
	}
	if len(raw) == 0 {
		return attachment{}, fmt.Errorf("attachment is empty")
	}

	att := attachment{data: raw}
	if declared != "" {
		if mt := mimetype.Lookup(declared); mt != nil {
			att.mediaType, att.extension = mt.String(), mt.Extension()
		} else {
			att.mediaType = declared
		}
	}
	if att.extension == "" {
		mt := mimetype.Detect(raw)
		if att.mediaType == "" {
			att.mediaType = mt.String()
		}
		att.extension = mt.Extension()
	}
	if att.extension == "" {
		att.extension = ".bin"
	}
	return att, nil
}

// folderFor maps an event kind onto its bundle folder.
func folderFor(kind timeline.Kind) string {
	switch kind {
	case timeline.KindNote:
		return "notes"
	case timeline.KindPhoto:
		return "images"
	case timeline.KindAudio:
		return "audio"
	case timeline.KindVideo:
		return "video"
	default:
		return ""
	}
}
