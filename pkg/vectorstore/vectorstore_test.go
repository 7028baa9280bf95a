package vectorstore_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/vectorstore"
)

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		store *vectorstore.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		store, err = vectorstore.Open(":memory:", 3)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("rejects non-positive dimensions", func() {
		_, err := vectorstore.Open(":memory:", 0)
		Expect(err).To(MatchError(vectorstore.ErrDimension))
	})

	It("returns nearest documents first", func() {
		Expect(store.Put(ctx, "x", "along x", []float64{1, 0, 0})).To(Succeed())
		Expect(store.Put(ctx, "y", "along y", []float64{0, 1, 0})).To(Succeed())
		Expect(store.Put(ctx, "z", "along z", []float64{0, 0, 1})).To(Succeed())

		matches, err := store.Search(ctx, []float64{0.9, 0.1, 0}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(2))
		Expect(matches[0].ID).To(Equal("x"))
		Expect(matches[0].Text).To(Equal("along x"))
		Expect(matches[1].ID).To(Equal("y"))
		Expect(matches[0].Distance).To(BeNumerically("<", matches[1].Distance))
	})

	It("replaces an existing id", func() {
		Expect(store.Put(ctx, "doc", "old", []float64{1, 0, 0})).To(Succeed())
		Expect(store.Put(ctx, "doc", "new", []float64{0, 0, 1})).To(Succeed())

		n, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		matches, err := store.Search(ctx, []float64{0, 0, 1}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(1))
		Expect(matches[0].Text).To(Equal("new"))
		Expect(matches[0].Distance).To(BeNumerically("~", 0, 1e-6))
	})

	It("rejects vectors of the wrong length", func() {
		Expect(store.Put(ctx, "bad", "bad", []float64{1, 2})).To(MatchError(vectorstore.ErrDimension))

		_, err := store.Search(ctx, []float64{1}, 1)
		Expect(err).To(MatchError(vectorstore.ErrDimension))
	})

	It("rejects non-positive k", func() {
		_, err := store.Search(ctx, []float64{1, 0, 0}, 0)
		Expect(err).To(MatchError(vectorstore.ErrInvalidK))
	})

	It("rejects k above MaxK without allocating for it", func() {
		Expect(store.Put(ctx, "a", "alpha", []float64{1, 0, 0})).To(Succeed())

		_, err := store.Search(ctx, []float64{1, 0, 0}, vectorstore.MaxK+1)
		Expect(err).To(MatchError(vectorstore.ErrInvalidK))

		_, err = store.Search(ctx, []float64{1, 0, 0}, 1<<60)
		Expect(err).To(MatchError(vectorstore.ErrInvalidK))
	})

	It("accepts k up to MaxK with fewer stored documents", func() {
		Expect(store.Put(ctx, "a", "alpha", []float64{1, 0, 0})).To(Succeed())

		matches, err := store.Search(ctx, []float64{1, 0, 0}, vectorstore.MaxK)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(1))
	})

	It("returns no matches for an empty store", func() {
		matches, err := store.Search(ctx, []float64{1, 0, 0}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(BeEmpty())
	})

	It("persists to a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "vectors.db")
		s, err := vectorstore.Open(path, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Put(ctx, "a", "alpha", []float64{1, 1, 1})).To(Succeed())
		Expect(s.Close()).To(Succeed())

		s, err = vectorstore.Open(path, 3)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()
		Expect(s.Dimensions()).To(Equal(3))

		n, err := s.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})
})
