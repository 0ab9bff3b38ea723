package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	t.Parallel()

	t.Run("creates error with defaults", func(t *testing.T) {
		err := NewError(ErrCodePathInvalid, "empty key")
		if err.Code != ErrCodePathInvalid {
			t.Errorf("Code = %v, want %v", err.Code, ErrCodePathInvalid)
		}
		if err.Category != CategoryFilesystem {
			t.Errorf("Category = %v, want %v", err.Category, CategoryFilesystem)
		}
		if err.Context == nil {
			t.Error("Context map is nil")
		}
		if err.Timestamp.IsZero() {
			t.Error("Timestamp not set")
		}
		if err.Retryable {
			t.Error("PathInvalid should not be retryable")
		}
	})

	t.Run("retryable defaults", func(t *testing.T) {
		if !NewError(ErrCodeNetworkError, "reset").Retryable {
			t.Error("NetworkError should be retryable by default")
		}
		if NewError(ErrCodeObjectNotFound, "gone").Retryable {
			t.Error("ObjectNotFound should not be retryable by default")
		}
	})

	t.Run("newf formats", func(t *testing.T) {
		err := Newf(ErrCodeFileNotFound, "no such file: %s", "/a/b")
		if err.Message != "no such file: /a/b" {
			t.Errorf("Message = %q", err.Message)
		}
	})
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeConfigLoad, CategoryConfiguration},
		{ErrCodeNetworkError, CategoryConnection},
		{ErrCodeObjectNotFound, CategoryStorage},
		{ErrCodeAccessDenied, CategoryStorage},
		{ErrCodePathInvalid, CategoryFilesystem},
		{ErrCodeNotSymlink, CategoryFilesystem},
		{ErrCodeCacheFull, CategoryResource},
		{ErrCodeOperationCanceled, CategoryOperation},
		{ErrCodeInternalError, CategoryInternal},
		{ErrorCode("SOMETHING_ELSE"), CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := GetCategory(tt.code); got != tt.want {
				t.Errorf("GetCategory(%v) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestMetacacheError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *MetacacheError
		want string
	}{
		{
			name: "code and message only",
			err:  NewError(ErrCodeFileNotFound, "missing"),
			want: "FILE_NOT_FOUND: missing",
		},
		{
			name: "with component",
			err:  NewError(ErrCodeFileNotFound, "missing").WithComponent("cache"),
			want: "[cache] FILE_NOT_FOUND: missing",
		},
		{
			name: "with component and operation",
			err:  NewError(ErrCodeFileNotFound, "missing").WithComponent("cache").WithOperation("Insert"),
			want: "[cache:Insert] FILE_NOT_FOUND: missing",
		},
		{
			name: "with cause",
			err:  NewError(ErrCodeStorageRead, "head failed").WithCause(fmt.Errorf("timeout")),
			want: "STORAGE_READ: head failed: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetacacheError_IsAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewError(ErrCodeStorageRead, "read").WithCause(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if !stderrors.Is(err, &MetacacheError{Code: ErrCodeStorageRead}) {
		t.Error("errors.Is should match by code")
	}
	if stderrors.Is(err, &MetacacheError{Code: ErrCodePathInvalid}) {
		t.Error("errors.Is matched a different code")
	}

	wrapped := fmt.Errorf("listing /dir: %w", NewError(ErrCodeObjectNotFound, "gone"))
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through fmt.Errorf wrapping")
	}
	if CodeOf(wrapped) != ErrCodeObjectNotFound {
		t.Errorf("CodeOf() = %v", CodeOf(wrapped))
	}
	if CodeOf(cause) != "" {
		t.Errorf("CodeOf(plain error) = %v, want empty", CodeOf(cause))
	}
}

func TestPredicates(t *testing.T) {
	if !IsInvalidArgument(NewError(ErrCodePathInvalid, "x")) {
		t.Error("PathInvalid should be an invalid argument")
	}
	if IsInvalidArgument(NewError(ErrCodeFileNotFound, "x")) {
		t.Error("FileNotFound is not an invalid argument")
	}
	if !IsNotFound(NewError(ErrCodeFileNotFound, "x")) {
		t.Error("FileNotFound should be not-found")
	}
	if !IsRetryable(fmt.Errorf("wrap: %w", NewError(ErrCodeNetworkError, "x"))) {
		t.Error("wrapped NetworkError should be retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestMetacacheError_StringAndJSON(t *testing.T) {
	err := NewError(ErrCodePathInvalid, "slash-terminated").
		WithComponent("notruncate").
		WithContext("path", "dir/")

	s := err.String()
	for _, want := range []string{"Code=PATH_INVALID", "Component=notruncate", `path="dir/"`} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}

	var decoded map[string]interface{}
	if jerr := json.Unmarshal([]byte(err.JSON()), &decoded); jerr != nil {
		t.Fatalf("JSON() produced invalid JSON: %v", jerr)
	}
	if decoded["code"] != "PATH_INVALID" {
		t.Errorf("json code = %v", decoded["code"])
	}
}
