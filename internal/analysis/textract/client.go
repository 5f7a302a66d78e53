// Package textract runs invoice analysis on Amazon Textract.
package textract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"invoice-backend/internal/analysis"
)

// maxPages bounds result paging for a single job.
const maxPages = 100

type textractAPI interface {
	StartDocumentAnalysis(ctx context.Context, in *textract.StartDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error)
	GetDocumentAnalysis(ctx context.Context, in *textract.GetDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error)
}

// Options configures the Textract client.
type Options struct {
	Region      string
	EndpointURL string
}

// Client implements analysis.Client over the asynchronous Textract API.
type Client struct {
	api textractAPI
}

// New builds a client from the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	api := textract.NewFromConfig(cfg, func(o *textract.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
	})
	return NewWithAPI(api), nil
}

// NewWithAPI wraps an existing Textract API client.
func NewWithAPI(api textractAPI) *Client {
	return &Client{api: api}
}

// StartAnalysis submits the document and returns the Textract job id.
func (c *Client) StartAnalysis(ctx context.Context, req analysis.StartRequest) (string, error) {
	if req.Document.Bucket == "" || req.Document.Key == "" {
		return "", fmt.Errorf("document bucket and key are required")
	}
	if req.Channel.TopicARN == "" || req.Channel.RoleARN == "" {
		return "", fmt.Errorf("notification topic and role are required")
	}

	features := make([]types.FeatureType, 0, len(req.Features))
	for _, f := range req.Features {
		features = append(features, types.FeatureType(f))
	}
	in := &textract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(req.Document.Bucket),
				Name:   aws.String(req.Document.Key),
			},
		},
		FeatureTypes: features,
		NotificationChannel: &types.NotificationChannel{
			SNSTopicArn: aws.String(req.Channel.TopicARN),
			RoleArn:     aws.String(req.Channel.RoleARN),
		},
	}
	if req.JobTag != "" {
		in.JobTag = aws.String(truncate(req.JobTag, 64))
	}
	if req.ClientToken != "" {
		in.ClientRequestToken = aws.String(truncate(req.ClientToken, 64))
	}

	out, err := c.api.StartDocumentAnalysis(ctx, in)
	if err != nil {
		return "", fmt.Errorf("start document analysis: %w", err)
	}
	jobID := aws.ToString(out.JobId)
	if jobID == "" {
		return "", fmt.Errorf("start document analysis: empty job id")
	}
	return jobID, nil
}

// GetResult fetches the job status and, for finished jobs, every result page.
func (c *Client) GetResult(ctx context.Context, jobID string) (analysis.Result, error) {
	res := analysis.Result{JobID: jobID}
	var token *string
	for page := 0; page < maxPages; page++ {
		out, err := c.api.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
			JobId:     aws.String(jobID),
			NextToken: token,
		})
		if err != nil {
			var invalid *types.InvalidJobIdException
			if errors.As(err, &invalid) {
				return analysis.Result{}, fmt.Errorf("%w: %s", analysis.ErrJobNotFound, jobID)
			}
			return analysis.Result{}, fmt.Errorf("get document analysis: %w", err)
		}
		if page == 0 {
			res.Status = analysis.JobStatus(out.JobStatus)
			res.StatusMessage = aws.ToString(out.StatusMessage)
			if out.DocumentMetadata != nil {
				res.Pages = int(aws.ToInt32(out.DocumentMetadata.Pages))
			}
		}
		for _, b := range out.Blocks {
			res.Blocks = append(res.Blocks, convertBlock(b))
		}
		if out.NextToken == nil || res.Status == analysis.JobInProgress {
			break
		}
		token = out.NextToken
	}
	return res, nil
}

func convertBlock(b types.Block) analysis.Block {
	out := analysis.Block{
		ID:         aws.ToString(b.Id),
		Type:       analysis.BlockType(b.BlockType),
		Text:       aws.ToString(b.Text),
		Confidence: float64(aws.ToFloat32(b.Confidence)),
		Page:       int(aws.ToInt32(b.Page)),
	}
	for _, e := range b.EntityTypes {
		out.EntityTypes = append(out.EntityTypes, string(e))
	}
	for _, rel := range b.Relationships {
		switch rel.Type {
		case types.RelationshipTypeChild:
			out.Children = append(out.Children, rel.Ids...)
		case types.RelationshipTypeValue:
			out.Values = append(out.Values, rel.Ids...)
		}
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
