package controller

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/FlowDeck/FlowDeck/internal/chat"
	"github.com/FlowDeck/FlowDeck/internal/gateway"
)

// maxAttachmentBytes bounds a single attachment. The webhook body carries
// attachments base64-inline, so large files balloon the request.
const maxAttachmentBytes = 10 << 20

// LoadAttachments reads the given files and returns the wire payloads plus
// the metadata persisted with the message. The file bytes travel base64-coded
// in the webhook body and are never written to the chat store.
func LoadAttachments(paths []string) ([]gateway.Attachment, []chat.FileRef, error) {
	if len(paths) == 0 {
		return nil, nil, nil
	}
	wire := make([]gateway.Attachment, 0, len(paths))
	refs := make([]chat.FileRef, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("read attachment: %w", err)
		}
		if len(data) > maxAttachmentBytes {
			return nil, nil, fmt.Errorf("attachment %s exceeds %d bytes", filepath.Base(p), maxAttachmentBytes)
		}
		name := filepath.Base(p)
		mimeType := mime.TypeByExtension(filepath.Ext(p))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		wire = append(wire, gateway.Attachment{
			Name: name,
			Type: mimeType,
			Data: base64.StdEncoding.EncodeToString(data),
		})
		refs = append(refs, chat.FileRef{Name: name, Type: mimeType, Size: int64(len(data))})
	}
	return wire, refs, nil
}
