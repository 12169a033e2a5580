package fetchlist_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	fetchlist "github.com/JohnPlummer/jp-go-fetchlist"
)

var _ = Describe("FetchState", func() {
	describe := func(s fetchlist.FetchState) string {
		return fetchlist.MatchState(s,
			func(fetchlist.Idle) string { return "idle" },
			func(p fetchlist.Pending) string { return "pending " + p.FetchID },
			func(r fetchlist.Ready) string { return "ready" },
			func(f fetchlist.Failed) string { return "failed: " + f.Err.Error() },
		)
	}

	It("dispatches on the active variant", func() {
		Expect(describe(fetchlist.Idle{})).To(Equal("idle"))
		Expect(describe(fetchlist.Pending{FetchID: "a"})).To(Equal("pending a"))
		Expect(describe(fetchlist.Ready{})).To(Equal("ready"))
		Expect(describe(fetchlist.Failed{Err: errors.New("boom")})).To(Equal("failed: boom"))
	})

	It("treats nil as idle", func() {
		Expect(describe(nil)).To(Equal("idle"))
	})

	DescribeTable("Kind",
		func(s fetchlist.FetchState, kind fetchlist.StateKind, name string) {
			Expect(s.Kind()).To(Equal(kind))
			Expect(s.Kind().String()).To(Equal(name))
		},
		Entry("idle", fetchlist.Idle{}, fetchlist.KindIdle, "idle"),
		Entry("pending", fetchlist.Pending{}, fetchlist.KindPending, "pending"),
		Entry("ready", fetchlist.Ready{}, fetchlist.KindReady, "ready"),
		Entry("failed", fetchlist.Failed{}, fetchlist.KindFailed, "failed"),
	)
})

var _ = Describe("StateCell", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	})

	AfterEach(func() {
		cancel()
	})

	It("starts idle when given nil", func() {
		cell := fetchlist.NewStateCell(nil)
		Expect(cell.Load()).To(Equal(fetchlist.Idle{}))
	})

	It("yields the current state to a new subscriber", func() {
		cell := fetchlist.NewStateCell(fetchlist.Pending{FetchID: "first"})

		states := cell.Subscribe(ctx)
		Eventually(states).Should(Receive(Equal(fetchlist.Pending{FetchID: "first"})))
	})

	It("closes the channel once the context is done", func() {
		cell := fetchlist.NewStateCell(nil)
		subCtx, subCancel := context.WithCancel(ctx)

		states := cell.Subscribe(subCtx)
		Eventually(states).Should(Receive())
		subCancel()
		Eventually(states).Should(BeClosed())
	})
})
