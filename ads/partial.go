// ABOUTME: Partial-failure decoding for Google Ads mutate responses
// ABOUTME: Maps GoogleAdsFailure errors back to the indices of the rejected operations
package ads

import (
	"fmt"
	"sort"
)

// Status is the google.rpc.Status returned as partialFailureError.
type Status struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Details []FailureDetail `json:"details"`
}

// FailureDetail is one GoogleAdsFailure entry in Status.Details.
type FailureDetail struct {
	Type   string        `json:"@type"`
	Errors []FailedError `json:"errors"`
}

// FailedError is a single rejected operation.
type FailedError struct {
	ErrorCode map[string]string `json:"errorCode"`
	Message   string            `json:"message"`
	Location  struct {
		FieldPathElements []struct {
			FieldName string `json:"fieldName"`
			Index     *int   `json:"index"`
		} `json:"fieldPathElements"`
	} `json:"location"`
}

// PartialFailure summarizes which operations of a batch were rejected.
type PartialFailure struct {
	// Indices are distinct rejected operation indices in ascending order.
	Indices []int
	// Unlocated is set when errors were reported but none named an operation.
	Unlocated bool
	Messages  []string
}

// ParsePartialFailure reads the rejected indices out of st. A nil or empty
// status means every operation succeeded.
func ParsePartialFailure(st *Status) PartialFailure {
	var pf PartialFailure
	if st == nil || (st.Code == 0 && st.Message == "" && len(st.Details) == 0) {
		return pf
	}

	seen := map[int]bool{}
	for _, d := range st.Details {
		for _, e := range d.Errors {
			idx := -1
			if elems := e.Location.FieldPathElements; len(elems) > 0 && elems[0].Index != nil {
				idx = *elems[0].Index
			}
			pf.Messages = append(pf.Messages, describe(idx, e))
			if idx >= 0 && !seen[idx] {
				seen[idx] = true
				pf.Indices = append(pf.Indices, idx)
			}
		}
	}
	sort.Ints(pf.Indices)

	if len(pf.Indices) == 0 {
		pf.Unlocated = true
		if len(pf.Messages) == 0 {
			pf.Messages = append(pf.Messages, st.Message)
		}
	}
	return pf
}

// Failed returns how many of attempted operations were rejected.
func (pf PartialFailure) Failed(attempted int) int {
	if pf.Unlocated {
		return attempted
	}
	n := 0
	for _, idx := range pf.Indices {
		if idx < attempted {
			n++
		}
	}
	return n
}

func describe(idx int, e FailedError) string {
	code := ""
	for k, v := range e.ErrorCode {
		code = k + "=" + v
		break
	}
	prefix := "operation ?"
	if idx >= 0 {
		prefix = fmt.Sprintf("operation %d", idx)
	}
	if code != "" {
		return fmt.Sprintf("%s: %s: %s", prefix, code, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}
