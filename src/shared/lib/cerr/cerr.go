// Package cerr builds errors that carry structured context fields alongside
// the usual wrapped message chain:
//
//	cerr.Field("input_path", path).Wrap(err).Error("Failed to stat input")
//
// The fields travel with the error and are emitted as log fields by Log.
package cerr

import (
	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

type F = map[string]any

type Context struct {
	fields F
	cause  error
}

func Field(key string, value any) Context {
	return Context{}.Field(key, value)
}

func Fields(fields F) Context {
	return Context{}.Fields(fields)
}

func Wrap(err error) Context {
	return Context{}.Wrap(err)
}

func Error(msg string) error {
	return Context{}.errorWithDepth(1, msg)
}

func (c Context) Field(key string, value any) Context {
	return c.Fields(F{key: value})
}

func (c Context) Fields(fields F) Context {
	merged := make(F, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return Context{
		fields: merged,
		cause:  c.cause,
	}
}

func (c Context) Wrap(err error) Context {
	return Context{
		fields: c.fields,
		cause:  err,
	}
}

func (c Context) Error(msg string) error {
	return c.errorWithDepth(1, msg)
}

func (c Context) errorWithDepth(depth int, msg string) error {
	var err error
	if c.cause == nil {
		err = errors.NewWithDepth(depth+1, msg)
	} else {
		err = errors.WrapWithDepth(depth+1, c.cause, msg)
	}

	if len(c.fields) == 0 {
		return err
	}

	return &fieldError{
		cause:  err,
		fields: c.fields,
	}
}

type fieldError struct {
	cause  error
	fields F
}

func (f *fieldError) Error() string {
	return f.cause.Error()
}

func (f *fieldError) Cause() error {
	return f.cause
}

func (f *fieldError) Unwrap() error {
	return f.cause
}

// CollectFields gathers the fields of every layer of the error chain.
// Outer layers take precedence over inner ones for the same key.
func CollectFields(err error) F {
	fields := F{}
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		fe, ok := e.(*fieldError)
		if !ok {
			continue
		}

		for k, v := range fe.fields {
			if _, exists := fields[k]; !exists {
				fields[k] = v
			}
		}
	}

	return fields
}

func Log(err error) {
	if err == nil {
		return
	}

	log.WithFields(log.Fields(CollectFields(err))).
		WithError(err).
		Error("Error occurred")
}
