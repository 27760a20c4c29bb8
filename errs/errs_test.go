package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := Transport("fetch contacts", errors.New("connection reset"))
	wrapped := fmt.Errorf("failed to fetch contacts: %w", base)

	assert.Equal(t, KindTransport, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestRemedyOf(t *testing.T) {
	err := fmt.Errorf("resolve target: %w",
		Config("conversion action", `create a conversion action named "Enrolled" in Google Ads before syncing`, "not found"))

	assert.Contains(t, RemedyOf(err), "create a conversion action")
	assert.Empty(t, RemedyOf(errors.New("plain")))
}

func TestRemedyOfNested(t *testing.T) {
	inner := Auth("token", errors.New("invalid_grant"), "run 'leadsync auth' to mint a new refresh token")
	outer := Transport("search", inner)

	assert.Equal(t, KindTransport, KindOf(outer))
	assert.Equal(t, "run 'leadsync auth' to mint a new refresh token", RemedyOf(outer))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(Transport("x", errors.New("y"))))
	assert.True(t, IsFatal(Auth("x", errors.New("y"), "")))
	assert.True(t, IsFatal(Config("x", "", "missing")))
	assert.True(t, IsFatal(errors.New("unclassified")))

	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(Validation("phone", "unparseable")))
	assert.False(t, IsFatal(PartialUpload("upload", 1, 3)))
}

func TestErrorMessage(t *testing.T) {
	err := Transport("GET /contacts", errors.New("timeout"))
	assert.Equal(t, "GET /contacts: TRANSPORT: timeout", err.Error())
	assert.True(t, errors.Is(err, errors.Unwrap(err)))
}

func TestPartialUploadMessage(t *testing.T) {
	err := PartialUpload("conversion_action", 2, 5)
	assert.Equal(t, KindPartialUpload, KindOf(err))
	assert.Equal(t, "conversion_action: PARTIAL_UPLOAD: 2 of 5 records rejected", err.Error())
}
