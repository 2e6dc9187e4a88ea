// Package upload validates files before they enter the edit pipeline and
// manages the local preview resource tied to an accepted upload.
package upload

import (
	"encoding/base64"
	"sync/atomic"
)

// Reason classifies a rejected upload.
type Reason string

const (
	ReasonSize    Reason = "size"
	ReasonType    Reason = "type"
	ReasonMissing Reason = "missing"
)

// File is an upload as received from the client boundary.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Base64 returns the file content encoded for the dispatch protocol.
func (f *File) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// Metadata describes an accepted upload.
type Metadata struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Result is the outcome of validation. Metadata is set only when OK;
// Reason only when not.
type Result struct {
	OK       bool
	Metadata Metadata
	Reason   Reason
}

// DefaultMaxSize is the default upload size limit.
const DefaultMaxSize = 10 << 20

var defaultTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
}

// Validator applies the size and MIME predicates.
type Validator struct {
	maxSize int64
	allowed map[string]struct{}
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxSize overrides the size limit in bytes.
func WithMaxSize(n int64) Option {
	return func(v *Validator) { v.maxSize = n }
}

// WithAllowedTypes replaces the accepted MIME type set.
func WithAllowedTypes(types ...string) Option {
	return func(v *Validator) {
		v.allowed = make(map[string]struct{}, len(types))
		for _, t := range types {
			v.allowed[t] = struct{}{}
		}
	}
}

// NewValidator creates a Validator with the default limits.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{maxSize: DefaultMaxSize, allowed: defaultTypes}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks f against the configured predicates. A nil or empty file
// is missing; checks run in order missing, type, size.
func (v *Validator) Validate(f *File) Result {
	if f == nil || len(f.Data) == 0 {
		return Result{Reason: ReasonMissing}
	}
	if _, ok := v.allowed[f.MimeType]; !ok {
		return Result{Reason: ReasonType}
	}
	if int64(len(f.Data)) > v.maxSize {
		return Result{Reason: ReasonSize}
	}
	return Result{OK: true, Metadata: Metadata{
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     int64(len(f.Data)),
	}}
}

// Preview is a locally held render of an accepted upload. The underlying
// resource is freed by Release, which is safe to call more than once but
// frees at most once.
type Preview struct {
	ref      string
	free     func()
	released atomic.Bool
}

// NewPreview wraps a rendered preview reference with its release function.
func NewPreview(ref string, free func()) *Preview {
	return &Preview{ref: ref, free: free}
}

// Ref returns the preview reference for display.
func (p *Preview) Ref() string {
	return p.ref
}

// Released reports whether the preview resource has been freed.
func (p *Preview) Released() bool {
	return p.released.Load()
}

// Release frees the preview resource exactly once.
func (p *Preview) Release() {
	if p.released.CompareAndSwap(false, true) && p.free != nil {
		p.free()
	}
}
