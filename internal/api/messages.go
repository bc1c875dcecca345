package api

import (
	"errors"
	"fmt"
	"net/http"

	"docsummarizer/internal/extract"
	"docsummarizer/internal/pipeline"
)

const (
	msgFetchFailed     = "Failed to retrieve file content from storage."
	msgExtractFailed   = "Failed to extract text from the document."
	msgSummarizeFailed = "Unable to generate a summary."
)

// failureNotices turns a pipeline failure into the error lines shown to the
// user. The last notice is always the one-line summary of what went wrong.
func failureNotices(f *pipeline.Failure) []pipeline.Notice {
	errorNotice := func(msg string) pipeline.Notice {
		return pipeline.Notice{Level: pipeline.NoticeError, Message: msg}
	}

	switch f.Kind {
	case pipeline.FailureList, pipeline.FailureUpload:
		return []pipeline.Notice{errorNotice(fmt.Sprintf("Failed to upload file: %v", f.Err))}
	case pipeline.FailureFetch:
		return []pipeline.Notice{
			errorNotice(fmt.Sprintf("Error fetching the file from storage: %v", f.Err)),
			errorNotice(msgFetchFailed),
		}
	case pipeline.FailureExtract:
		if errors.Is(f.Err, pipeline.ErrNoText) {
			return []pipeline.Notice{errorNotice(msgExtractFailed)}
		}
		detail := "Error extracting text"
		var extractErr *extract.Error
		if errors.As(f.Err, &extractErr) {
			switch extractErr.Kind {
			case extract.KindPDF:
				detail = "Error extracting PDF text"
			case extract.KindDOCX:
				detail = "Error extracting DOCX text"
			}
			return []pipeline.Notice{
				errorNotice(fmt.Sprintf("%s: %v", detail, extractErr.Err)),
				errorNotice(msgExtractFailed),
			}
		}
		return []pipeline.Notice{
			errorNotice(fmt.Sprintf("%s: %v", detail, f.Err)),
			errorNotice(msgExtractFailed),
		}
	default:
		return []pipeline.Notice{
			errorNotice(fmt.Sprintf("Error generating summary: %v", f.Err)),
			errorNotice(msgSummarizeFailed),
		}
	}
}

// failureStatus is 422 for documents that cannot be read and 502 otherwise.
func failureStatus(f *pipeline.Failure) int {
	if f.Kind == pipeline.FailureExtract {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, errUnsupportedType):
		return "Unsupported file type. Please upload a .txt, .pdf or .docx file."
	case errors.Is(err, errFileTooLarge):
		return "The file is too large to summarize."
	case errors.Is(err, errFileRequired):
		return "Please choose a file to upload."
	default:
		return err.Error()
	}
}
