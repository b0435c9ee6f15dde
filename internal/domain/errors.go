package domain

import "errors"

var (
	ErrInvalidAspectRatio     = errors.New("invalid aspect ratio")
	ErrPayloadTooLarge        = errors.New("source images exceed size limit")
	ErrTextGeneration         = errors.New("text generation failed")
	ErrSourceLoad             = errors.New("source image load failed")
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
	ErrImageGeneration        = errors.New("image generation failed")
	ErrComposite              = errors.New("image compositing failed")
	ErrPersistence            = errors.New("output persistence failed")
)
