package catimage_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/cat-facts/internal/catimage"
)

var _ = Describe("Validate", func() {
	It("should accept a declared image type", func() {
		c := &catimage.Candidate{ContentType: "image/jpeg", Body: jpegBytes}
		Expect(catimage.Validate(c)).To(Succeed())
		Expect(c.ContentType).To(Equal("image/jpeg"))
	})

	It("should accept declared image types with parameters and any case", func() {
		c := &catimage.Candidate{ContentType: "Image/PNG; charset=binary", Body: pngBytes}
		Expect(catimage.Validate(c)).To(Succeed())
	})

	DescribeTable("should sniff the type when the header says nothing useful",
		func(contentType string, body []byte, expected string) {
			c := &catimage.Candidate{ContentType: contentType, Body: body}
			Expect(catimage.Validate(c)).To(Succeed())
			Expect(c.ContentType).To(Equal(expected))
		},
		Entry("missing png", "", pngBytes, "image/png"),
		Entry("octet-stream jpeg", "application/octet-stream", jpegBytes, "image/jpeg"),
	)

	It("should reject octet-stream bodies that are not images", func() {
		c := &catimage.Candidate{ContentType: "application/octet-stream", Body: []byte("hello there, not a cat")}
		Expect(errors.Is(catimage.Validate(c), catimage.ErrInvalidImage)).To(BeTrue())
	})

	It("should reject declared non-image types", func() {
		c := &catimage.Candidate{ContentType: "text/html; charset=utf-8", Body: []byte("<html></html>")}
		Expect(errors.Is(catimage.Validate(c), catimage.ErrInvalidImage)).To(BeTrue())
	})

	It("should reject empty bodies", func() {
		c := &catimage.Candidate{ContentType: "image/jpeg"}
		Expect(errors.Is(catimage.Validate(c), catimage.ErrInvalidImage)).To(BeTrue())
	})

	It("should reject a nil candidate", func() {
		Expect(errors.Is(catimage.Validate(nil), catimage.ErrInvalidImage)).To(BeTrue())
	})
})
