package worker

import "bird-analysis-service/internal/media"

// OpenCV is the production Media implementation over gocv.
type OpenCV struct{}

func (OpenCV) OpenSource(path string) (MediaSource, error) {
	return media.OpenSource(path)
}

func (OpenCV) NewSink(path string, fps float64, width, height int) (FrameSink, error) {
	return media.NewSink(path, fps, width, height)
}
