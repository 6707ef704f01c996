package worker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/jonymoraes/mediaserver/internal/apperror"
	"github.com/jonymoraes/mediaserver/internal/processor/image"
	"github.com/jonymoraes/mediaserver/internal/processor/video"
	"github.com/jonymoraes/mediaserver/internal/tracing"
)

// Queue job types.
const (
	TypeImage = "image.process"
	TypeVideo = "video.transcode"
)

// Upload describes a file already written to disk and waiting to be
// processed for an account.
type Upload struct {
	Filename  string          `json:"filename" validate:"required"`
	Filepath  string          `json:"filepath" validate:"required"`
	Mimetype  string          `json:"mimetype" validate:"required"`
	Filesize  int64           `json:"filesize" validate:"gt=0"`
	AccountID string          `json:"accountId" validate:"required"`
	QuotaID   string          `json:"quotaId" validate:"required"`
	Trace     tracing.Carrier `json:"trace"`
}

type ImagePayload struct {
	Upload
	// Context selects the target size. Unknown or empty names resolve to
	// image.FallbackContext.
	Context string `json:"context"`
}

type VideoPayload struct {
	Upload
	Format string `json:"format" validate:"required,videoformat"`
}

// Validator checks payloads at the queue boundary: struct rules first, then
// the upload's sniffed content type.
type Validator struct {
	v      *validator.Validate
	images ContextLookup
}

// NewValidator builds a validator whose context and format rules follow the
// given tables. A nil format table rejects every format.
func NewValidator(images ContextLookup, videos FormatLookup) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("videoformat", func(fl validator.FieldLevel) bool {
		if videos == nil {
			return false
		}
		_, ok := videos.Lookup(fl.Field().String())
		return ok
	})
	return &Validator{v: v, images: images}
}

// Image also rewrites an unknown context to the fallback one.
func (v *Validator) Image(p *ImagePayload) error {
	if err := v.structure(p); err != nil {
		return err
	}
	if v.images == nil {
		p.Context = image.FallbackContext
	} else if _, ok := v.images.Lookup(p.Context); !ok {
		p.Context = image.FallbackContext
	}
	mime, err := sniff(p.Filepath, "image", image.SupportedTypes)
	if err != nil {
		return err
	}
	p.Mimetype = mime
	return nil
}

func (v *Validator) Video(p *VideoPayload) error {
	if err := v.structure(p); err != nil {
		return err
	}
	mime, err := sniff(p.Filepath, "video", video.SupportedTypes)
	if err != nil {
		return err
	}
	p.Mimetype = mime
	return nil
}

func (v *Validator) structure(p any) error {
	err := v.v.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Wrap(err, apperror.ErrInvalidInput)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return apperror.Invalid("invalid payload: " + strings.Join(fields, ", "))
}

// sniff detects the upload's content type from its bytes and returns the
// matching entry of allowed.
func sniff(path, kind string, allowed []string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", apperror.Wrap(err, apperror.Invalid("cannot read upload"))
	}
	for _, a := range allowed {
		if m.Is(a) {
			return a, nil
		}
	}
	return "", apperror.Invalid(fmt.Sprintf("unsupported %s type %s", kind, m.String()))
}
