package capture

import (
	"context"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// mjpegHandler writes a multipart/x-mixed-replace body carrying the
// given frames, the way an IP webcam answers a stream request.
func mjpegHandler(frames ...[]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		w.WriteHeader(http.StatusOK)
		for _, frame := range frames {
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type": {"image/jpeg"},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(frame)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(mw.Close()).To(Succeed())
	}
}

var _ = Describe("MJPEG", func() {
	var (
		ghttpServer *ghttp.Server
		source      *MJPEG
	)

	BeforeEach(func() {
		ghttpServer = ghttp.NewServer()
		source = NewMJPEG(ghttpServer.URL() + "/stream")
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	Describe("Open", func() {
		It("should keep the most recent frame", func() {
			ghttpServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/stream"),
				mjpegHandler([]byte("frame-one"), []byte("frame-two")),
			))

			stream, err := source.Open(context.Background())
			Expect(err).NotTo(HaveOccurred())
			defer stream.Stop()

			Eventually(func() []byte {
				data, _, _ := stream.Frame()
				return data
			}).Should(Equal([]byte("frame-two")))

			_, mediaType, err := stream.Frame()
			Expect(err).NotTo(HaveOccurred())
			Expect(mediaType).To(Equal("image/jpeg"))
		})

		It("should report no frame before the device delivers one", func() {
			release := make(chan struct{})
			defer close(release)
			ghttpServer.AppendHandlers(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				<-release
			})

			stream, err := source.Open(context.Background())
			Expect(err).NotTo(HaveOccurred())
			defer stream.Stop()

			_, _, err = stream.Frame()
			Expect(err).To(MatchError(ErrNoFrame))
		})

		It("should fail when the device refuses the stream", func() {
			ghttpServer.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, nil))

			stream, err := source.Open(context.Background())
			Expect(stream).To(BeNil())
			Expect(err).To(MatchError(ContainSubstring("camera refused stream")))
		})

		It("should fail when the device does not speak MJPEG", func() {
			ghttpServer.AppendHandlers(ghttp.RespondWith(http.StatusOK, "<html>not a camera</html>", http.Header{
				"Content-Type": []string{"text/html"},
			}))

			stream, err := source.Open(context.Background())
			Expect(stream).To(BeNil())
			Expect(err).To(MatchError(ContainSubstring("not an MJPEG source")))
		})

		It("should fail when the device cannot be reached", func() {
			deadServer := ghttp.NewServer()
			url := deadServer.URL()
			deadServer.Close()

			stream, err := NewMJPEG(url).Open(context.Background())
			Expect(stream).To(BeNil())
			Expect(err).To(HaveOccurred())
		})

		It("should give up when the caller abandons the handshake", func() {
			release := make(chan struct{})
			defer close(release)
			ghttpServer.AppendHandlers(func(w http.ResponseWriter, r *http.Request) {
				// Never send headers until the caller has gone away.
				<-release
			})

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			stream, err := source.Open(ctx)
			Expect(stream).To(BeNil())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Stop", func() {
		It("should be safe to call twice", func() {
			ghttpServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/stream"),
				mjpegHandler([]byte("frame-one")),
			))

			stream, err := source.Open(context.Background())
			Expect(err).NotTo(HaveOccurred())

			stream.Stop()
			Expect(stream.Stop()).To(Succeed())
		})

		It("should end the live feed", func() {
			ghttpServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/stream"),
				mjpegHandler([]byte("frame-one")),
			))

			stream, err := source.Open(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() []byte {
				data, _, _ := stream.Frame()
				return data
			}).ShouldNot(BeNil())

			Expect(stream.Stop()).To(Succeed())
		})
	})
})
