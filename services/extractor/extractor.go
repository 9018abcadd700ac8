package extractor

import (
	"strings"

	"github.com/mailvault/mailvault/internal/logger"
)

// Decoder turns one attachment payload into plain text
type Decoder interface {
	Decode(data []byte) (string, error)
}

type DecoderFunc func(data []byte) (string, error)

func (f DecoderFunc) Decode(data []byte) (string, error) {
	return f(data)
}

// Service dispatches attachment payloads to format-specific decoders by
// MIME type. The table is built once at construction; families without an
// available engine (image OCR) register a fallback that returns empty text.
type Service struct {
	log          logger.Logger
	decoders     map[string]Decoder
	imageDecoder Decoder
}

func NewService(log logger.Logger) *Service {
	s := &Service{
		log:      log,
		decoders: make(map[string]Decoder),
	}

	plain := DecoderFunc(decodePlainText)
	html := DecoderFunc(decodeHTML)
	word := DecoderFunc(decodeWordDocument)
	sheet := DecoderFunc(decodeSpreadsheet)

	s.decoders["text/plain"] = plain
	s.decoders["text/csv"] = plain
	s.decoders["text/xml"] = plain
	s.decoders["application/json"] = plain

	s.decoders["text/html"] = html
	s.decoders["application/xhtml+xml"] = html

	s.decoders["application/rtf"] = DecoderFunc(decodeRTF)
	s.decoders["application/pdf"] = DecoderFunc(decodePDF)

	s.decoders["application/msword"] = word
	s.decoders["application/vnd.openxmlformats-officedocument.wordprocessingml.document"] = word
	s.decoders["application/vnd.oasis.opendocument.text"] = DecoderFunc(decodeOpenDocumentText)

	s.decoders["application/vnd.ms-excel"] = sheet
	s.decoders["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"] = sheet
	s.decoders["application/vnd.oasis.opendocument.spreadsheet"] = sheet

	s.decoders["application/vnd.ms-powerpoint"] = DecoderFunc(decodePresentation)
	s.decoders["application/vnd.openxmlformats-officedocument.presentationml.presentation"] = DecoderFunc(decodePresentation)

	// No OCR engine is bundled; the image family keeps its attachment
	// records but yields empty text until an engine is registered
	s.imageDecoder = DecoderFunc(func(data []byte) (string, error) {
		return "", nil
	})

	return s
}

// RegisterImageDecoder swaps in a real OCR engine
func (s *Service) RegisterImageDecoder(d Decoder) {
	s.imageDecoder = d
}

// Extract returns the text for a payload. The second return value reports
// whether a decoder handled the MIME type at all: false means "no decoder",
// true with empty text means the decoder ran but produced nothing or
// failed. Decoder failures never propagate; the attachment is persisted
// with empty text instead.
func (s *Service) Extract(data []byte, mimeType string) (string, bool) {
	mt := normalizeMimeType(mimeType)

	var decoder Decoder
	if strings.HasPrefix(mt, "image/") {
		decoder = s.imageDecoder
	} else {
		decoder = s.decoders[mt]
	}

	if decoder == nil {
		return "", false
	}

	text, err := decoder.Decode(data)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("text extraction failed for %s: %v", mt, err)
		}
		return "", true
	}

	return text, true
}

// Supported reports whether a decoder exists for the MIME type
func (s *Service) Supported(mimeType string) bool {
	mt := normalizeMimeType(mimeType)
	if strings.HasPrefix(mt, "image/") {
		return true
	}
	_, ok := s.decoders[mt]
	return ok
}

func normalizeMimeType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}
