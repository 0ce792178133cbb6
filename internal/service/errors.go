package service

import (
	"errors"
	"fmt"
)

// ErrorCode 返回给客户端的稳定错误码，客户端只按错误码分支
type ErrorCode int

const (
	CodeParamsCheckFailed    ErrorCode = 100000
	CodeServerFail           ErrorCode = 100001
	CodeCurrentProcessFailed ErrorCode = 100002
	CodeNotPermission        ErrorCode = 100003
	CodeNeedLoginAgain       ErrorCode = 100004
	CodeCanRetry             ErrorCode = 100005

	CodeRoomNotFound     ErrorCode = 200000
	CodeRoomIsEnded      ErrorCode = 200001
	CodeRoomIsRunning    ErrorCode = 200002
	CodeRoomNotIsRunning ErrorCode = 200003
	CodeRoomNotIsEnded   ErrorCode = 200004
	CodeRoomNotIsIdle    ErrorCode = 200005

	CodePeriodicNotFound          ErrorCode = 300000
	CodePeriodicIsEnded           ErrorCode = 300001
	CodePeriodicSubRoomHasRunning ErrorCode = 300002

	CodeRecordNotFound ErrorCode = 500000

	CodeUploadConcurrentLimit    ErrorCode = 700000
	CodeNotEnoughTotalUsage      ErrorCode = 700001
	CodeFileSizeTooBig           ErrorCode = 700002
	CodeFileNotFound             ErrorCode = 700003
	CodeFileExists               ErrorCode = 700004
	CodeDirectoryNotExists       ErrorCode = 700005
	CodeDirectoryAlreadyExists   ErrorCode = 700006
	CodeParentDirectoryNotExists ErrorCode = 700007

	CodeFileIsConverted      ErrorCode = 800000
	CodeFileConvertFailed    ErrorCode = 800001
	CodeFileIsConverting     ErrorCode = 800002
	CodeFileIsConvertWaiting ErrorCode = 800003
	CodeFileNotIsConvertNone ErrorCode = 800004
	CodeFileNotIsConverting  ErrorCode = 800005
)

var codeNames = map[ErrorCode]string{
	CodeParamsCheckFailed:         "params check failed",
	CodeServerFail:                "upstream server failed",
	CodeCurrentProcessFailed:      "current process failed",
	CodeNotPermission:             "not permission",
	CodeNeedLoginAgain:            "need login again",
	CodeCanRetry:                  "can retry",
	CodeRoomNotFound:              "room not found",
	CodeRoomIsEnded:               "room is ended",
	CodeRoomIsRunning:             "room is running",
	CodeRoomNotIsRunning:          "room is not running",
	CodeRoomNotIsEnded:            "room is not ended",
	CodeRoomNotIsIdle:             "room is not idle",
	CodePeriodicNotFound:          "periodic room not found",
	CodePeriodicIsEnded:           "periodic room is ended",
	CodePeriodicSubRoomHasRunning: "periodic sub room is running",
	CodeRecordNotFound:            "record not found",
	CodeUploadConcurrentLimit:     "upload concurrent limit",
	CodeNotEnoughTotalUsage:       "not enough total usage",
	CodeFileSizeTooBig:            "file size too big",
	CodeFileNotFound:              "file not found",
	CodeFileExists:                "file exists",
	CodeDirectoryNotExists:        "directory not exists",
	CodeDirectoryAlreadyExists:    "directory already exists",
	CodeParentDirectoryNotExists:  "parent directory not exists",
	CodeFileIsConverted:           "file is converted",
	CodeFileConvertFailed:         "file convert failed",
	CodeFileIsConverting:          "file is converting",
	CodeFileIsConvertWaiting:      "file is waiting for convert",
	CodeFileNotIsConvertNone:      "file convert already started",
	CodeFileNotIsConverting:       "file is not converting",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error code %d", int(c))
}

// Retryable 客户端稍后重试即可成功的错误
func (c ErrorCode) Retryable() bool {
	return c == CodeCanRetry || c == CodeFileIsConverting || c == CodeFileIsConvertWaiting
}

// Error 业务错误，Err 保存底层原因 (可为 nil)
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is 错误码相同即视为同一种错误，便于 errors.Is(err, ErrRoomNotFound)
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Wrap 带上底层原因返回同一错误码
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Err: err}
}

var (
	ErrParamsCheckFailed    = &Error{Code: CodeParamsCheckFailed}
	ErrServerFail           = &Error{Code: CodeServerFail}
	ErrCurrentProcessFailed = &Error{Code: CodeCurrentProcessFailed}
	ErrNotPermission        = &Error{Code: CodeNotPermission}
	ErrNeedLoginAgain       = &Error{Code: CodeNeedLoginAgain}
	ErrCanRetry             = &Error{Code: CodeCanRetry}

	ErrRoomNotFound     = &Error{Code: CodeRoomNotFound}
	ErrRoomIsEnded      = &Error{Code: CodeRoomIsEnded}
	ErrRoomIsRunning    = &Error{Code: CodeRoomIsRunning}
	ErrRoomNotIsRunning = &Error{Code: CodeRoomNotIsRunning}
	ErrRoomNotIsIdle    = &Error{Code: CodeRoomNotIsIdle}

	ErrPeriodicNotFound          = &Error{Code: CodePeriodicNotFound}
	ErrPeriodicIsEnded           = &Error{Code: CodePeriodicIsEnded}
	ErrPeriodicSubRoomHasRunning = &Error{Code: CodePeriodicSubRoomHasRunning}

	ErrUploadConcurrentLimit    = &Error{Code: CodeUploadConcurrentLimit}
	ErrNotEnoughTotalUsage      = &Error{Code: CodeNotEnoughTotalUsage}
	ErrFileSizeTooBig           = &Error{Code: CodeFileSizeTooBig}
	ErrFileNotFound             = &Error{Code: CodeFileNotFound}
	ErrFileExists               = &Error{Code: CodeFileExists}
	ErrDirectoryNotExists       = &Error{Code: CodeDirectoryNotExists}
	ErrDirectoryAlreadyExists   = &Error{Code: CodeDirectoryAlreadyExists}
	ErrParentDirectoryNotExists = &Error{Code: CodeParentDirectoryNotExists}

	ErrFileConvertFailed    = &Error{Code: CodeFileConvertFailed}
	ErrFileIsConverting     = &Error{Code: CodeFileIsConverting}
	ErrFileIsConvertWaiting = &Error{Code: CodeFileIsConvertWaiting}
	ErrFileNotIsConvertNone = &Error{Code: CodeFileNotIsConvertNone}
	ErrFileNotIsConverting  = &Error{Code: CodeFileNotIsConverting}
)

// CodeOf 取出错误码，非业务错误一律视为 CurrentProcessFailed
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeCurrentProcessFailed
}

// wrapInternal 包装仓库层或其他意料之外的错误，已经是业务错误的原样返回
func wrapInternal(err error, op string) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return ErrCurrentProcessFailed.Wrap(fmt.Errorf("%s: %w", op, err))
}
