package orchestrator_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/stem-splitter/src/shared/lib/rabbitmq/rabbitmqfakes"
	"github.com/veedubyou/stem-splitter/src/shared/lib/storagepath"
	"github.com/veedubyou/stem-splitter/src/shared/separation/entity"
	"github.com/veedubyou/stem-splitter/src/shared/separation/errors"
	"github.com/veedubyou/stem-splitter/src/shared/separation/events"
	"github.com/veedubyou/stem-splitter/src/shared/separation/invoker"
	"github.com/veedubyou/stem-splitter/src/shared/separation/joblock"
	"github.com/veedubyou/stem-splitter/src/shared/separation/mirror"
	"github.com/veedubyou/stem-splitter/src/shared/separation/mirror/mirrorfakes"
	"github.com/veedubyou/stem-splitter/src/shared/separation/orchestrator"
	"github.com/veedubyou/stem-splitter/src/shared/separation/pathresolver"
	"github.com/veedubyou/stem-splitter/src/shared/separation/relocator"
	. "github.com/veedubyou/stem-splitter/src/shared/testing"
)

var _ = Describe("JobOrchestrator", func() {
	var (
		layout        Layout
		dummyExecutor *DummySeparationExecutor
		config        orchestrator.Config
		deps          orchestrator.Dependencies

		jobOrchestrator *orchestrator.JobOrchestrator
	)

	toolOutputPath := func(segments ...string) string {
		return filepath.Join(append([]string{layout.ProcessedRoot, "htdemucs"}, segments...)...)
	}

	separate := func(filename string) (*separationentity.Job, error) {
		return jobOrchestrator.Separate(context.Background(), separationentity.SeparationRequest{
			Filename: filename,
		})
	}

	expectFailure := func(job *separationentity.Job, err error, kind separationerrors.Kind) {
		ExpectKind(err, kind)
		ExpectWithOffset(1, job.Status).To(Equal(separationentity.FailedStatus))
		ExpectWithOffset(1, job.Error).NotTo(BeNil())
		ExpectWithOffset(1, job.Error.Kind).To(Equal(kind))
	}

	BeforeEach(func() {
		layout = NewLayout()
		dummyExecutor = NewDummySeparationExecutor()

		config = orchestrator.Config{
			DefaultModel: "htdemucs",
		}

		resolver := ExpectSuccess(pathresolver.NewResolver(layout.UploadRoot, layout.ProcessedRoot))
		deps = orchestrator.Dependencies{
			Resolver: resolver,
			Invoker: invoker.NewSeparationInvoker(invoker.Config{
				BinPath:    "demucs",
				WorkingDir: layout.Root,
			}, layout.ProcessedRoot, dummyExecutor),
			Relocator: relocator.NewOutputRelocator(),
			Locker:    ExpectSuccess(joblock.NewLocker(layout.LockDir)),
		}
	})

	JustBeforeEach(func() {
		jobOrchestrator = ExpectSuccess(orchestrator.NewJobOrchestrator(config, deps))
	})

	Describe("Construction", func() {
		It("rejects an invalid default model", func() {
			config.DefaultModel = "../htdemucs"
			_, err := orchestrator.NewJobOrchestrator(config, deps)
			Expect(err).To(HaveOccurred())
		})

		It("requires the invoker, relocator and locker", func() {
			deps.Locker = nil
			_, err := orchestrator.NewJobOrchestrator(config, deps)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Namespaced upload", func() {
		BeforeEach(func() {
			layout.WriteUpload("alice/song.mp3", "cool_jamz")
		})

		It("moves the stems under the namespace", func() {
			job, err := separate("alice/song.mp3")
			Expect(err).NotTo(HaveOccurred())

			Expect(job.ID).NotTo(BeEmpty())
			Expect(job.Status).To(Equal(separationentity.SucceededStatus))
			Expect(job.FinalOutputPath).To(Equal(toolOutputPath("alice", "song")))
			Expect(job.StemFiles).To(ConsistOf(DefaultStems))

			Expect(ListDir(toolOutputPath("alice", "song"))).To(ConsistOf(DefaultStems))
			Expect(toolOutputPath("song")).NotTo(BeAnExistingFile())

			result := job.Result()
			Expect(result.Status).To(Equal(separationentity.SuccessStatus))
			Expect(result.OutputFolder).To(Equal(toolOutputPath("alice", "song")))
		})

		It("runs the tool with the default model", func() {
			ExpectSuccess(separate("alice/song.mp3"))

			Expect(dummyExecutor.RunCount()).To(Equal(1))
			command := dummyExecutor.Commands()[0]
			Expect(command.Flag("-n")).To(Equal("htdemucs"))
			Expect(command.Flag("-o")).To(Equal(layout.ProcessedRoot))
			Expect(command.InputPath()).To(Equal(filepath.Join(layout.UploadRoot, "alice", "song.mp3")))
		})

		It("produces the same layout when repeated", func() {
			ExpectSuccess(separate("alice/song.mp3"))
			job := ExpectSuccess(separate("alice/song.mp3"))

			Expect(job.StemFiles).To(ConsistOf(DefaultStems))
			Expect(ListDir(toolOutputPath())).To(ConsistOf("alice"))
			Expect(ListDir(toolOutputPath("alice"))).To(ConsistOf("song"))
			Expect(ListDir(toolOutputPath("alice", "song"))).To(ConsistOf(DefaultStems))
		})

		It("links each stem below the downloads route", func() {
			job := ExpectSuccess(separate("alice/song.mp3"))

			Expect(job.Downloads).To(ContainElement(separationentity.StemDownload{
				Name: "vocals.wav",
				URL:  "/downloads/htdemucs/alice/song/vocals.wav",
			}))
		})

		Context("With a public base URL", func() {
			BeforeEach(func() {
				config.DownloadBaseURL = "http://localhost:8000"
			})

			It("prefixes the download links", func() {
				job := ExpectSuccess(separate("alice/song.mp3"))

				Expect(job.Downloads).To(ContainElement(separationentity.StemDownload{
					Name: "drums.wav",
					URL:  "http://localhost:8000/downloads/htdemucs/alice/song/drums.wav",
				}))
			})
		})
	})

	Describe("Upload without a namespace", func() {
		It("leaves the stems where the tool wrote them", func() {
			layout.WriteUpload("song.mp3", "cool_jamz")

			job := ExpectSuccess(separate("song.mp3"))
			Expect(job.SubNamespace).To(BeEmpty())
			Expect(job.FinalOutputPath).To(Equal(job.ToolOutputPath))
			Expect(ListDir(toolOutputPath("song"))).To(ConsistOf(DefaultStems))
		})
	})

	Describe("Nested namespace", func() {
		It("keeps every namespace level", func() {
			layout.WriteUpload("alice/live/song.flac", "cool_jamz")

			job := ExpectSuccess(separate("alice/live/song.flac"))
			Expect(job.FinalOutputPath).To(Equal(toolOutputPath("alice", "live", "song")))
			Expect(job.Downloads[0].URL).To(HavePrefix("/downloads/htdemucs/alice/live/song/"))
		})
	})

	Describe("Requested model", func() {
		BeforeEach(func() {
			layout.WriteUpload("alice/song.mp3", "cool_jamz")
			config.AllowedModels = []string{"htdemucs", "mdx_extra"}
		})

		It("runs an allowed model", func() {
			job := ExpectSuccess(jobOrchestrator.Separate(context.Background(), separationentity.SeparationRequest{
				Filename:  "alice/song.mp3",
				ModelName: "mdx_extra",
			}))

			Expect(dummyExecutor.Commands()[0].Flag("-n")).To(Equal("mdx_extra"))
			Expect(job.FinalOutputPath).To(Equal(filepath.Join(layout.ProcessedRoot, "mdx_extra", "alice", "song")))
		})

		It("rejects a model outside of the allowed list", func() {
			job, err := jobOrchestrator.Separate(context.Background(), separationentity.SeparationRequest{
				Filename:  "alice/song.mp3",
				ModelName: "umx",
			})

			expectFailure(job, err, separationerrors.InvalidRequest)
			Expect(dummyExecutor.RunCount()).To(Equal(0))
		})

		It("rejects a model that looks like an option", func() {
			job, err := jobOrchestrator.Separate(context.Background(), separationentity.SeparationRequest{
				Filename:  "alice/song.mp3",
				ModelName: "--help",
			})

			expectFailure(job, err, separationerrors.InvalidRequest)
			Expect(dummyExecutor.RunCount()).To(Equal(0))
		})

		It("rejects two stems that look like an option", func() {
			job, err := jobOrchestrator.Separate(context.Background(), separationentity.SeparationRequest{
				Filename: "alice/song.mp3",
				TwoStems: "-o",
			})

			expectFailure(job, err, separationerrors.InvalidRequest)
			Expect(dummyExecutor.RunCount()).To(Equal(0))
		})

		It("passes two stems through", func() {
			ExpectSuccess(jobOrchestrator.Separate(context.Background(), separationentity.SeparationRequest{
				Filename: "alice/song.mp3",
				TwoStems: "vocals",
			}))

			Expect(dummyExecutor.Commands()[0].Flag("--two-stems")).To(Equal("vocals"))
		})
	})

	Describe("Input checks", func() {
		It("fails with not found before running the tool", func() {
			job, err := separate("alice/missing.mp3")

			expectFailure(job, err, separationerrors.NotFound)
			Expect(dummyExecutor.RunCount()).To(Equal(0))
			Expect(ListDir(layout.ProcessedRoot)).NotTo(ContainElement("htdemucs"))
		})

		It("treats a directory as not found", func() {
			Expect(os.MkdirAll(filepath.Join(layout.UploadRoot, "alice", "album.mp3"), os.ModePerm)).To(Succeed())

			job, err := separate("alice/album.mp3")
			expectFailure(job, err, separationerrors.NotFound)
			Expect(dummyExecutor.RunCount()).To(Equal(0))
		})

		It("rejects a filename escaping the upload root", func() {
			Expect(os.WriteFile(filepath.Join(layout.Root, "secret.mp3"), []byte("secret"), 0o644)).To(Succeed())

			job, err := separate("../secret.mp3")
			expectFailure(job, err, separationerrors.InvalidPath)
			Expect(dummyExecutor.RunCount()).To(Equal(0))
		})

		It("rejects an absolute filename", func() {
			job, err := separate(filepath.Join(layout.UploadRoot, "song.mp3"))
			expectFailure(job, err, separationerrors.InvalidPath)
		})

		It("rejects a link pointing outside of the upload root", func() {
			secretPath := filepath.Join(layout.Root, "secret.mp3")
			Expect(os.WriteFile(secretPath, []byte("secret"), 0o644)).To(Succeed())
			Expect(os.MkdirAll(filepath.Join(layout.UploadRoot, "alice"), os.ModePerm)).To(Succeed())
			Expect(os.Symlink(secretPath, filepath.Join(layout.UploadRoot, "alice", "link.mp3"))).To(Succeed())

			job, err := separate("alice/link.mp3")
			expectFailure(job, err, separationerrors.InvalidPath)
			Expect(dummyExecutor.RunCount()).To(Equal(0))
		})

		It("requires a filename", func() {
			job, err := separate("")
			expectFailure(job, err, separationerrors.InvalidRequest)
		})
	})

	Describe("Tool failures", func() {
		BeforeEach(func() {
			layout.WriteUpload("alice/song.mp3", "cool_jamz")
		})

		It("reports a nonzero exit and leaves any output alone", func() {
			dummyExecutor.ExitCode = 1
			dummyExecutor.Stderr = "RuntimeError: CUDA out of memory"
			WriteStems(toolOutputPath("song"), "stale.wav")

			job, err := separate("alice/song.mp3")
			expectFailure(job, err, separationerrors.ExternalToolFailure)
			Expect(job.Error.Detail).To(ContainSubstring("CUDA out of memory"))

			var toolFailure *invoker.ToolFailure
			Expect(errors.As(err, &toolFailure)).To(BeTrue())
			Expect(toolFailure.ExitCode).To(Equal(1))

			Expect(ListDir(toolOutputPath("song"))).To(ConsistOf("stale.wav"))
			Expect(toolOutputPath("alice", "song")).NotTo(BeAnExistingFile())
		})

		It("reports missing output when the tool wrote nothing", func() {
			dummyExecutor.NoOutput = true

			job, err := separate("alice/song.mp3")
			expectFailure(job, err, separationerrors.OutputMissing)
			Expect(toolOutputPath("alice", "song")).NotTo(BeAnExistingFile())
		})

		It("does not mistake another job's output for its own", func() {
			layout.WriteUpload("song.mp3", "bobs_jamz")
			ExpectSuccess(separate("song.mp3"))
			Expect(ListDir(toolOutputPath("song"))).To(ConsistOf(DefaultStems))

			dummyExecutor.NoOutput = true
			job, err := separate("alice/song.mp3")
			expectFailure(job, err, separationerrors.OutputMissing)

			By("leaving the earlier output where it was")
			Expect(ListDir(toolOutputPath("song"))).To(ConsistOf(DefaultStems))
			Expect(toolOutputPath("alice", "song")).NotTo(BeAnExistingFile())
			Expect(ListDir(toolOutputPath())).To(ConsistOf("song"))
		})

		It("does not pick up partial output of an earlier failed run", func() {
			WriteStems(toolOutputPath("song"), "partial.wav")

			dummyExecutor.NoOutput = true
			job, err := separate("alice/song.mp3")
			expectFailure(job, err, separationerrors.OutputMissing)
			Expect(ListDir(toolOutputPath("song"))).To(ConsistOf("partial.wav"))
		})

		It("clears stale output before a run without a namespace", func() {
			layout.WriteUpload("song.mp3", "bobs_jamz")
			WriteStems(toolOutputPath("song"), "stale.wav")

			dummyExecutor.NoOutput = true
			job, err := separate("song.mp3")
			expectFailure(job, err, separationerrors.OutputMissing)
			Expect(toolOutputPath("song")).NotTo(BeAnExistingFile())
		})

		It("keeps the earlier output after a namespaced success", func() {
			WriteStems(toolOutputPath("song"), "bob.wav")

			job, err := separate("alice/song.mp3")
			Expect(err).NotTo(HaveOccurred())
			Expect(job.StemFiles).To(ConsistOf(DefaultStems))
			Expect(ListDir(toolOutputPath("alice", "song"))).To(ConsistOf(DefaultStems))
			Expect(ListDir(toolOutputPath("song"))).To(ConsistOf("bob.wav"))
		})

		It("reports an unavailable tool", func() {
			dummyExecutor.StartErr = os.ErrNotExist

			job, err := separate("alice/song.mp3")
			expectFailure(job, err, separationerrors.ToolUnavailable)
		})

		It("reports a timeout when the deadline passes mid-run", func() {
			dummyExecutor.Block = make(chan struct{})
			defer close(dummyExecutor.Block)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			job, err := jobOrchestrator.Separate(ctx, separationentity.SeparationRequest{Filename: "alice/song.mp3"})
			expectFailure(job, err, separationerrors.Timeout)
		})
	})

	Describe("Concurrent jobs", func() {
		BeforeEach(func() {
			layout.WriteUpload("alice/song.mp3", "cool_jamz")
			layout.WriteUpload("bob/other.mp3", "more_jamz")

			dummyExecutor.Block = make(chan struct{})
			dummyExecutor.Started = make(chan struct{}, 2)
		})

		runInBackground := func(filename string) chan error {
			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := separate(filename)
				done <- err
			}()
			return done
		}

		It("serializes jobs for the same destination", func() {
			first := runInBackground("alice/song.mp3")
			Eventually(dummyExecutor.Started).Should(Receive())

			second := runInBackground("alice/song.mp3")
			Consistently(dummyExecutor.Started, 300*time.Millisecond).ShouldNot(Receive())

			close(dummyExecutor.Block)
			Eventually(first, 2*time.Second).Should(Receive(BeNil()))
			Eventually(second, 2*time.Second).Should(Receive(BeNil()))

			Expect(dummyExecutor.RunCount()).To(Equal(2))
			Expect(ListDir(toolOutputPath("alice", "song"))).To(ConsistOf(DefaultStems))
		})

		It("gives up waiting for a held destination when the context ends", func() {
			first := runInBackground("alice/song.mp3")
			Eventually(dummyExecutor.Started).Should(Receive())

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			job, err := jobOrchestrator.Separate(ctx, separationentity.SeparationRequest{Filename: "alice/song.mp3"})
			expectFailure(job, err, separationerrors.Timeout)
			Expect(dummyExecutor.RunCount()).To(Equal(1))

			close(dummyExecutor.Block)
			Eventually(first, 2*time.Second).Should(Receive(BeNil()))
		})

		Context("With a single slot", func() {
			BeforeEach(func() {
				config.MaxConcurrentJobs = 1
			})

			It("runs one tool at a time", func() {
				first := runInBackground("alice/song.mp3")
				Eventually(dummyExecutor.Started).Should(Receive())

				second := runInBackground("bob/other.mp3")
				Consistently(dummyExecutor.Started, 300*time.Millisecond).ShouldNot(Receive())

				close(dummyExecutor.Block)
				Eventually(first, 2*time.Second).Should(Receive(BeNil()))
				Eventually(second, 2*time.Second).Should(Receive(BeNil()))
			})
		})

		Context("Without a slot limit", func() {
			It("runs distinct destinations side by side", func() {
				first := runInBackground("alice/song.mp3")
				second := runInBackground("bob/other.mp3")

				Eventually(dummyExecutor.Started).Should(Receive())
				Eventually(dummyExecutor.Started).Should(Receive())

				close(dummyExecutor.Block)
				Eventually(first, 2*time.Second).Should(Receive(BeNil()))
				Eventually(second, 2*time.Second).Should(Receive(BeNil()))
			})
		})
	})

	Describe("Mirroring", func() {
		var fileStore *mirrorfakes.FakeFileStore

		BeforeEach(func() {
			layout.WriteUpload("alice/song.mp3", "cool_jamz")

			fileStore = &mirrorfakes.FakeFileStore{}
			deps.Mirror = mirror.NewMirror(fileStore, storagepath.Generator{
				Host:   "https://storage.googleapis.com",
				Bucket: "stems",
			})
		})

		It("links the mirrored stems", func() {
			job := ExpectSuccess(separate("alice/song.mp3"))

			Expect(fileStore.WriteFileCallCount()).To(Equal(len(DefaultStems)))
			Expect(job.Downloads).To(ContainElement(separationentity.StemDownload{
				Name: "bass.wav",
				URL:  "https://storage.googleapis.com/stems/htdemucs/alice/song/bass.wav",
			}))
		})

		It("fails the job when mirroring fails but keeps the local stems", func() {
			fileStore.WriteFileReturns(errors.New("bucket is gone"))

			job, err := separate("alice/song.mp3")
			expectFailure(job, err, separationerrors.MirrorFailure)
			Expect(ListDir(toolOutputPath("alice", "song"))).To(ConsistOf(DefaultStems))
		})
	})

	Describe("Notifications", func() {
		var publisher *rabbitmqfakes.FakePublisher

		BeforeEach(func() {
			publisher = &rabbitmqfakes.FakePublisher{}
			deps.Notifier = events.NewNotifier(publisher)
		})

		lastMessage := func() events.JobFinishedMessage {
			Expect(publisher.PublishCallCount()).To(Equal(1))
			_, msg := publisher.PublishArgsForCall(0)
			return DecodeJSON[events.JobFinishedMessage](bytes.NewReader(msg.Body))
		}

		It("announces a finished job", func() {
			layout.WriteUpload("alice/song.mp3", "cool_jamz")

			job := ExpectSuccess(separate("alice/song.mp3"))

			message := lastMessage()
			Expect(message.JobID).To(Equal(job.ID))
			Expect(message.Stems).To(ConsistOf(DefaultStems))
		})

		It("announces a failed job", func() {
			job, _ := separate("alice/missing.mp3")

			message := lastMessage()
			Expect(message.JobID).To(Equal(job.ID))
			Expect(message.ErrorKind).To(Equal(separationerrors.NotFound))
		})
	})
})

var _ = Describe("LocalDownloads", func() {
	It("handles a base URL with a path", func() {
		job := separationentity.NewJob("job-id", separationentity.SeparationRequest{ModelName: "htdemucs"})
		job.Paths = separationentity.Paths{BaseName: "song", SubNamespace: "alice"}
		job.StemFiles = []string{"vocals.wav"}

		downloads := ExpectSuccess(orchestrator.LocalDownloads("https://example.com/stems/", job))
		Expect(downloads).To(Equal([]separationentity.StemDownload{{
			Name: "vocals.wav",
			URL:  "https://example.com/stems/downloads/htdemucs/alice/song/vocals.wav",
		}}))
	})
})
