// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package errors provides coded errors for recall. Every code has the form
// <domain>.<operation>.<reason>; the reason suffix drives the predicates and
// the HTTP status mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeMemoryConfigInvalid        Code = "memory.config.invalid_value"
	CodeMemoryAddInvalidInput      Code = "memory.add.invalid_input"
	CodeMemoryAddEmbedFailure      Code = "memory.add.embed.failure"
	CodeMemoryAddIndexFailure      Code = "memory.add.index.failure"
	CodeMemoryQueryEmbedFailure    Code = "memory.query.embed.failure"
	CodeMemoryQueryIndexFailure    Code = "memory.query.index.failure"
	CodeMemoryClearFailure         Code = "memory.clear.failure"
	CodeMemoryEmbeddingDimMismatch Code = "memory.embedding.dimension_mismatch"

	CodeIndexBackendUnsupported Code = "index.backend.unsupported"
	CodeIndexConfigInvalid      Code = "index.config.invalid_value"
	CodeIndexVectorInvalid      Code = "index.vector.invalid_input"
	CodeIndexBackendFailure     Code = "index.backend.failure"

	CodeEmbeddingRequestInvalid    Code = "embedding.request.invalid"
	CodeEmbeddingUpstreamFailure   Code = "embedding.upstream.failure"
	CodeEmbeddingResponseMalformed Code = "embedding.response.malformed"
	CodeEmbeddingProviderNotFound  Code = "embedding.provider.not_found"

	CodeJudgeRequestInvalid    Code = "judge.request.invalid"
	CodeJudgeUpstreamFailure   Code = "judge.upstream.failure"
	CodeJudgeResponseMalformed Code = "judge.response.malformed"
	CodeJudgeCallTimeout       Code = "judge.call.timeout"
	CodeJudgeProviderNotFound  Code = "judge.provider.not_found"

	CodeEvalInputInvalid       Code = "eval.input.invalid_input"
	CodeEvalDatasetReadFailure Code = "eval.dataset.read.failure"
	CodeEvalDatasetInvalid     Code = "eval.dataset.invalid_format"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput   Code = "secret.invalid_input"
	CodeSecretNotFound       Code = "secret.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLISetupFailure  Code = "cli.setup.failure"
	CodeCLIInputInvalid  Code = "cli.input.invalid"
	CodeCLIOutputFailure Code = "cli.output.failure"
)

// Blame records which party caused an error.
type Blame string

const (
	BlameUser   Blame = "user"
	BlameSystem Blame = "system"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func FieldMetric(value string) Attr {
	return Field("metric", value)
}

// FieldBlame tags an error with the party responsible for it.
func FieldBlame(value Blame) Attr {
	return Field("blame", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain, keeping its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

// BlameOf returns the blame recorded on err. Invalid-input errors without an
// explicit tag are blamed on the user; everything else on the system.
func BlameOf(err error) Blame {
	if err == nil {
		return ""
	}
	if b, ok := FieldsOf(err)["blame"].(Blame); ok {
		return b
	}
	if IsInvalidInput(err) {
		return BlameUser
	}
	return BlameSystem
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	case HasCode(err, CodeIndexBackendUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeServerInternalFailure).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
