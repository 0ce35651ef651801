package worker

import "fmt"

func errTooManyEvents(got, max int) error {
	return fmt.Errorf("event list length %d exceeds maximum %d", got, max)
}
