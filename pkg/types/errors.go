package types

import (
	"fmt"
	"net/http"
)

// Error codes carried in ErrorEntry values.
const (
	CodeVisionEmptyImage     = "VISION_EMPTY_IMAGE"
	CodeVisionParseError     = "VISION_PARSE_ERROR"
	CodeVisionSchemaInvalid  = "VISION_SCHEMA_INVALID"
	CodeVisionUpstreamError  = "VISION_UPSTREAM_ERROR"
	CodeVisionPartialBBox    = "VISION_PARTIAL_BBOX"
	CodeVisionNoCandidates   = "VISION_NO_CANDIDATES"
	CodeVisionUnavailable    = "VISION_UNAVAILABLE"
	CodeRankingSchemaInvalid = "RANKING_SCHEMA_INVALID"
	CodeRankingNotEnabled    = "RANKING_NOT_ENABLED"
	CodeRankingNoMapped      = "RANKING_NO_MAPPED_CANDIDATES"
)

// UpstreamError reports a failed call to an external model. Status is the
// HTTP status code of the last attempt, or 0 when none was received.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d (%s): %v", e.Op, e.Status, http.StatusText(e.Status), e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
