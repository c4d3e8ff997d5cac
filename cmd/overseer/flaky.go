package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/airsstack/overseer"
)

// flaky returns a child that fails after a random time around every.
// A non-positive every never fails.
func flaky(every time.Duration) overseer.ChildFunc {
	return func(ctx context.Context) error {
		if every <= 0 {
			<-ctx.Done()
			return nil
		}

		after := every/2 + rand.N(every)
		timer := time.NewTimer(after)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			return fmt.Errorf("simulated crash after %s", after.Round(time.Millisecond))
		}
	}
}
