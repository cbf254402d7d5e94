package httpengine

import (
	"mime"
	"mime/multipart"
	"net/textproto"
)

// Part is one multipart/form-data section, pointing at a Header and
// an io.Reader over its content. mime/multipart.Reader itself already
// reads directly off the body stream without buffering the whole
// part in memory, which is why this engine reaches for it rather than
// hand-rolling boundary scanning: the standard library's parser already
// matches the "read through a fixed scratch slice, never buffer the
// whole entity" constraint spec.md requires for body readers.
type Part struct {
	Header   textproto.MIMEHeader
	FormName string
	FileName string
	reader   *multipart.Part
}

func (p *Part) Read(buf []byte) (int, error) { return p.reader.Read(buf) }
func (p *Part) Close() error                  { return p.reader.Close() }

// MultipartReader iterates the parts of a multipart/form-data body.
type MultipartReader struct {
	mr *multipart.Reader
}

// NewMultipartReader builds a MultipartReader from req's body and its
// Content-Type boundary parameter. Returns ErrInvalidHeader if
// Content-Type isn't multipart/form-data or lacks a boundary.
func NewMultipartReader(req *Request) (*MultipartReader, error) {
	if req.Body == nil {
		return nil, ErrInvalidHeader
	}
	contentType := req.GetHeaderString("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, ErrInvalidHeader
	}
	if mediaType != "multipart/form-data" {
		return nil, ErrInvalidHeader
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return nil, ErrInvalidHeader
	}
	return &MultipartReader{mr: multipart.NewReader(req.Body, boundary)}, nil
}

// NextPart advances to the next part, returning io.EOF (via the
// underlying reader) once the terminating boundary is reached.
func (m *MultipartReader) NextPart() (*Part, error) {
	raw, err := m.mr.NextPart()
	if err != nil {
		return nil, err
	}
	return &Part{
		Header:   raw.Header,
		FormName: raw.FormName(),
		FileName: raw.FileName(),
		reader:   raw,
	}, nil
}

// ReadPartInto reads one chunk of part into scratch, exactly like any
// io.Reader.Read: it returns the bytes read and, once the part is
// exhausted, io.EOF. A part larger than scratch is read over multiple
// calls — callers must loop rather than assume a single call drains
// the whole part.
func ReadPartInto(part *Part, scratch []byte) (int, error) {
	return part.Read(scratch)
}
