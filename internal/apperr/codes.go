package apperr

// ResultCode is the outcome of processing a file, reported by the CLI.
type ResultCode string

const (
	CodeSuccess           ResultCode = "success"
	CodeInvalidArgs       ResultCode = "invalid-args"
	CodeFileNotFound      ResultCode = "file-not-found"
	CodeProviderError     ResultCode = "provider-error"
	CodeGenerationFailed  ResultCode = "generation-failed"
	CodeValidationFailed  ResultCode = "validation-failed"
	CodeTestRunFailed     ResultCode = "test-run-failed"
	CodeSelfHealExhausted ResultCode = "self-heal-exhausted"
)

var exitCodes = map[ResultCode]int{
	CodeSuccess:           0,
	CodeInvalidArgs:       2,
	CodeFileNotFound:      3,
	CodeProviderError:     4,
	CodeGenerationFailed:  5,
	CodeValidationFailed:  6,
	CodeTestRunFailed:     7,
	CodeSelfHealExhausted: 8,
}

// ExitCode returns the process exit code for c. Unknown codes exit 1.
func (c ResultCode) ExitCode() int {
	if n, ok := exitCodes[c]; ok {
		return n
	}
	return 1
}

// CodeFor maps an error onto a result code. A nil error is a success.
func CodeFor(err error) ResultCode {
	if err == nil {
		return CodeSuccess
	}
	switch KindOf(err) {
	case KindInvalidArgs:
		return CodeInvalidArgs
	case KindFileNotFound:
		return CodeFileNotFound
	case KindProvider, KindProviderNotAvailable, KindTimeout:
		return CodeProviderError
	case KindGeneration, KindParse:
		return CodeGenerationFailed
	case KindValidation:
		return CodeValidationFailed
	case KindTestRun:
		return CodeTestRunFailed
	case KindSelfHealingExhausted:
		return CodeSelfHealExhausted
	default:
		return CodeGenerationFailed
	}
}
