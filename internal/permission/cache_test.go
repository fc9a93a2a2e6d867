package permission

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SnapshotCache", func() {
	var cache *SnapshotCache

	BeforeEach(func() {
		cache = NewSnapshotCache()
	})

	It("stores a snapshot built against the current version", func() {
		_, version, ok := cache.get("staff")
		Expect(ok).To(BeFalse())

		cache.put("staff", newSnapshot([]string{"orders.view"}), version)

		snap, _, ok := cache.get("staff")
		Expect(ok).To(BeTrue())
		Expect(snap.has("orders.view")).To(BeTrue())
	})

	It("drops a snapshot whose version was invalidated mid-build", func() {
		_, version, ok := cache.get("staff")
		Expect(ok).To(BeFalse())

		cache.Invalidate("staff")
		cache.put("staff", newSnapshot([]string{"orders.view"}), version)

		_, _, ok = cache.get("staff")
		Expect(ok).To(BeFalse())
	})

	It("drops a snapshot whose version predates a reset", func() {
		_, version, ok := cache.get("staff")
		Expect(ok).To(BeFalse())

		cache.Reset()
		cache.put("staff", newSnapshot([]string{"orders.view"}), version)

		_, _, ok = cache.get("staff")
		Expect(ok).To(BeFalse())
	})

	It("scopes invalidation to the one role", func() {
		_, staffVersion, _ := cache.get("staff")
		_, managerVersion, _ := cache.get("manager")

		cache.Invalidate("manager")
		cache.put("staff", newSnapshot([]string{"orders.view"}), staffVersion)
		cache.put("manager", newSnapshot([]string{"orders.view"}), managerVersion)

		_, _, ok := cache.get("staff")
		Expect(ok).To(BeTrue())
		_, _, ok = cache.get("manager")
		Expect(ok).To(BeFalse())
	})
})
