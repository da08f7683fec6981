package dbpool

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("driverDSN", func() {
	DescribeTable("URI to driver mapping",
		func(uri, wantDriver, wantDSN string) {
			driver, dsn, err := driverDSN(uri)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).To(Equal(wantDriver))
			Expect(dsn).To(Equal(wantDSN))
		},
		Entry("postgres passes through",
			"postgres://user:pw@db:5432/asterisk?sslmode=disable",
			"pgx", "postgres://user:pw@db:5432/asterisk?sslmode=disable"),
		Entry("postgresql alias",
			"postgresql://user@db/asterisk",
			"pgx", "postgresql://user@db/asterisk"),
		Entry("sqlite file path",
			"sqlite:///var/lib/agid/agid.db",
			"sqlite", "/var/lib/agid/agid.db"),
		Entry("sqlite in-memory",
			"sqlite::memory:",
			"sqlite", ":memory:"),
		Entry("sqlite3 alias",
			"sqlite3:///tmp/agid.db",
			"sqlite", "/tmp/agid.db"),
		Entry("sqlite with query options",
			"sqlite:///tmp/agid.db?_pragma=busy_timeout(5000)",
			"sqlite", "/tmp/agid.db?_pragma=busy_timeout(5000)"),
	)

	It("should reject an unsupported scheme", func() {
		_, _, err := driverDSN("mysql://root@localhost/asterisk")
		Expect(err).To(MatchError(ContainSubstring("unsupported")))
	})

	It("should reject a sqlite uri without a path", func() {
		_, _, err := driverDSN("sqlite://")
		Expect(err).To(HaveOccurred())
	})
})
