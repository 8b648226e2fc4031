package worker

import (
	"encoding/json"

	"bird-analysis-service/internal/analysis"
	"bird-analysis-service/internal/entity"
	"bird-analysis-service/internal/media"
	"bird-analysis-service/internal/pipeline"
)

// buildResult assembles the result document from the pipeline
// accumulators: presence segments with their dominant species, the
// overall ranking, and per-species segments.
func buildResult(digest string, params entity.AnalysisParams, info media.Info, outW, outH int, scaled bool, res *pipeline.Result, gap float64) *entity.ResultDocument {
	frameCount := info.FrameCount
	if frameCount <= 0 {
		frameCount = res.FramesProcessed
	}

	vi := entity.VideoInfo{
		FPS:             info.FPS,
		FrameCount:      frameCount,
		Width:           outW,
		Height:          outH,
		Stride:          params.Stride,
		Confidence:      params.Confidence,
		DurationSeconds: info.Duration(),
		UploadBytes:     params.UploadBytes,
	}
	if scaled {
		vi.ScaledFrom = &entity.Dimensions{Width: info.Width, Height: info.Height}
	}

	segments := analysis.BuildSegments(res.Timestamps, gap)
	ranked := make([]entity.RankedSegment, 0, len(segments))
	for _, seg := range segments {
		ranked = append(ranked, entity.RankedSegment{
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
			TopSpecies: analysis.DominantSpecies(seg, res.ByClass, res.ClassOrder),
		})
	}

	ranking := analysis.RankSpecies(res.Counts, res.ClassOrder)
	var top *string
	if len(ranking) > 0 {
		top = &ranking[0].Species
	}

	return &entity.ResultDocument{
		VideoID:           digest,
		VideoURL:          "/analyze/video/" + digest,
		VideoInfo:         vi,
		Segments:          ranked,
		SpeciesRanking:    ranking,
		SpeciesSegments:   analysis.SegmentsByClass(res.ByClass, gap, res.ClassOrder),
		TopSpeciesOverall: top,
		KeyFrames:         res.KeyFrames,
		Observations:      res.Observations,
	}
}

func marshalResult(doc *entity.ResultDocument) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
