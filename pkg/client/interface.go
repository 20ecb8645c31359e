package client

import (
	"context"

	"github.com/menta2k/video-slides/pkg/types"
)

// VisionClient is a vision language model backend
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	DescribeSlide(ctx context.Context, model, prompt, imgB64 string) (*types.SlideNote, error)
}
