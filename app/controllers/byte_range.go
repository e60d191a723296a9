package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errUnsatisfiableRange = errors.New("controllers: range not satisfiable")

type byteRange struct {
	start, length int64
}

func (br byteRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", br.start, br.start+br.length-1, size)
}

// parseRange reads a single "bytes=" range against size. ok is false when the
// header is absent, malformed or asks for several ranges; the caller then
// serves the whole body. A well-formed range outside the body yields
// errUnsatisfiableRange.
func parseRange(header string, size int64) (br byteRange, ok bool, err error) {
	set, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found || set == "" || strings.Contains(set, ",") {
		return byteRange{}, false, nil
	}
	first, last, found := strings.Cut(strings.TrimSpace(set), "-")
	if !found {
		return byteRange{}, false, nil
	}

	if first == "" {
		// Suffix form: the final n bytes.
		n, perr := strconv.ParseInt(last, 10, 64)
		if perr != nil || n < 0 {
			return byteRange{}, false, nil
		}
		if n == 0 || size == 0 {
			return byteRange{}, false, errUnsatisfiableRange
		}
		n = min(n, size)
		return byteRange{start: size - n, length: n}, true, nil
	}

	start, perr := strconv.ParseInt(first, 10, 64)
	if perr != nil || start < 0 {
		return byteRange{}, false, nil
	}
	if start >= size {
		return byteRange{}, false, errUnsatisfiableRange
	}

	end := size - 1
	if last != "" {
		e, perr := strconv.ParseInt(last, 10, 64)
		if perr != nil || e < start {
			return byteRange{}, false, nil
		}
		end = min(e, size-1)
	}
	return byteRange{start: start, length: end - start + 1}, true, nil
}
