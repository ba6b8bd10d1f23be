package infiniteq

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

// IsNormalizedPageSizeMax returns the effective page size and whether the
// requested size was used as is.
func IsNormalizedPageSizeMax(size int, maxSize int) (int, bool) {
	if size <= 0 {
		return DefaultPageSize, false
	} else if size > maxSize {
		return maxSize, false
	}

	return size, true
}

func NormalizePageSizeMax(size int, maxSize int) int {
	ret, _ := IsNormalizedPageSizeMax(size, maxSize)
	return ret
}

func NormalizePageSize(size int) int {
	return NormalizePageSizeMax(size, MaxPageSize)
}
