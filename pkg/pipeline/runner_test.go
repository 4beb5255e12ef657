package pipeline_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/fanpulse/livewire/pkg/pipeline"
	"github.com/fanpulse/livewire/pkg/pipeline/mock"
)

var _ = Describe("Testing Runner", func() {
	var ctrl *gomock.Controller

	var source chan Data
	var proc *mock.MockProcessing[Data]
	var errorProc *mock.MockErrorProcessing

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())

		source = make(chan Data, 8)
		proc = mock.NewMockProcessing[Data](ctrl)
		errorProc = mock.NewMockErrorProcessing(ctrl)
	})

	When("the source is closed after a few payloads", func() {
		BeforeEach(func() {
			proc.EXPECT().Process(gomock.Any(), data).Return(nil).Times(3)

			for i := 0; i < 3; i++ {
				source <- data
			}
			close(source)
		})

		It("should drain everything and stop", func(ctx SpecContext) {
			runner := pipeline.NewRunner[Data](source, 2, proc, errorProc)

			err := runner.Start(ctx)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("a payload fails with a categorized error", func() {
		BeforeEach(func() {
			proc.EXPECT().Process(gomock.Any(), data).Return(errRetryableErrProcessingError).Times(1)
			errorProc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, processingError pipeline.ErrProcessingError) error {
					defer GinkgoRecover()
					Expect(processingError.Category).To(Equal(oneCategory), "category is preserved")

					return nil
				},
			).Times(1)

			source <- data
			close(source)
		})

		It("should hand the error to the error processing", func(ctx SpecContext) {
			runner := pipeline.NewRunner[Data](source, 1, proc, errorProc)

			err := runner.Start(ctx)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("a payload fails with a generic error", func() {
		BeforeEach(func() {
			proc.EXPECT().Process(gomock.Any(), data).Return(errors.New("boom")).Times(1)
			errorProc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, processingError pipeline.ErrProcessingError) error {
					defer GinkgoRecover()
					Expect(processingError.Category).To(Equal(pipeline.UnknownCategory), "generic errors fall in the unknown category")

					return nil
				},
			).Times(1)

			source <- data
			close(source)
		})

		It("should wrap it before handing it over", func(ctx SpecContext) {
			runner := pipeline.NewRunner[Data](source, 1, proc, errorProc)

			err := runner.Start(ctx)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the context is cancelled before any payload shows up", func() {
		It("should stop without error", func(ctx SpecContext) {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			runner := pipeline.NewRunner[Data](source, 2, proc, errorProc)

			err := runner.Start(cancelled)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
