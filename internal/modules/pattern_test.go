package modules

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("extensionMatches", func() {
	DescribeTable("literal and pattern matching",
		func(number, exten string, want bool) {
			Expect(extensionMatches(number, exten)).To(Equal(want))
		},
		Entry("exact literal match", "1001", "1001", true),
		Entry("literal mismatch", "1002", "1001", false),
		Entry("literal prefix is not a match", "10010", "1001", false),
		Entry("X matches any digit", "1001", "_100X", true),
		Entry("X rejects non-digits", "100a", "_100X", false),
		Entry("Z rejects zero", "1000", "_100Z", false),
		Entry("Z matches 1-9", "1009", "_100Z", true),
		Entry("N rejects one", "1001", "_100N", false),
		Entry("N matches 2-9", "1002", "_100N", true),
		Entry("dot matches the rest", "0612345678", "_06.", true),
		Entry("dot needs at least one digit", "06", "_06.", false),
		Entry("bang matches even the empty rest", "06", "_06!", true),
		Entry("pattern shorter than number", "10012", "_100X", false),
		Entry("pattern longer than number", "100", "_100X", false),
		Entry("lowercase classes accepted", "1002", "_100n", true),
	)
})
