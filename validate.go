package memcev

import "regexp"

// keyPattern is deliberately stricter than memcached's own rule (any byte
// except NUL, space, tab, LF, CR): restricting to alphanumerics keeps keys
// printable in logs and error messages, at the cost of rejecting some
// otherwise-legal keys.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,250}$`)

// maxValueBytes is memcached's own item-size ceiling.
const maxValueBytes = 1 << 20

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return newError(KindValidation, "key must match ^[A-Za-z0-9]{1,250}$", nil)
	}
	return nil
}

func validateValue(value []byte) error {
	if len(value) > maxValueBytes {
		return newError(KindValidation, "value exceeds 1 MiB", nil)
	}
	return nil
}
