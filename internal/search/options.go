package search

import (
	"fmt"
	"math"
	"unicode/utf8"

	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
)

// prepareRequest validates req and fills defaults. The caller's value is not
// modified.
func prepareRequest(req Request, config EngineConfig) (Request, error) {
	if len(req.Handles) == 0 {
		return req, amerrors.ValidationError("at least one collection handle is required", nil)
	}
	for _, h := range req.Handles {
		if h == "" {
			return req, amerrors.ValidationError("collection handles must not be empty", nil)
		}
	}
	if req.Size < 0 || req.Offset < 0 {
		return req, amerrors.New(amerrors.ErrCodeInvalidWindow,
			fmt.Sprintf("invalid pagination window: size=%d offset=%d", req.Size, req.Offset), nil).
			WithSuggestion("Use a size and offset of zero or more")
	}
	if config.MaxOffset > 0 && req.Offset > config.MaxOffset {
		return req, amerrors.New(amerrors.ErrCodeInvalidWindow,
			fmt.Sprintf("offset %d exceeds the limit of %d", req.Offset, config.MaxOffset), nil).
			WithSuggestion("Narrow the query instead of paging this deep")
	}
	if !utf8.ValidString(req.Query) {
		return req, amerrors.New(amerrors.ErrCodeInvalidQuery, "query is not valid UTF-8", nil)
	}
	if config.MaxQueryLength > 0 && len(req.Query) > config.MaxQueryLength {
		return req, amerrors.New(amerrors.ErrCodeQueryTooLong,
			fmt.Sprintf("query is %d bytes, limit is %d", len(req.Query), config.MaxQueryLength), nil)
	}

	if req.Language == "" {
		req.Language = DefaultLanguage
	}
	if config.MaxSize > 0 && req.Size > config.MaxSize {
		req.Size = config.MaxSize
	}
	// Each index is asked for offset+size hits.
	if req.Offset > math.MaxInt-req.Size {
		return req, amerrors.New(amerrors.ErrCodeInvalidWindow,
			fmt.Sprintf("invalid pagination window: size=%d offset=%d", req.Size, req.Offset), nil)
	}
	return req, nil
}
