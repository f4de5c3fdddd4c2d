package services

//go:generate mockgen -source=archive_mirror.go -destination=mock_archive_mirror.go -package=services

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/freight-bidding/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ArchiveMirror copies finished archive records to a secondary store
type ArchiveMirror interface {
	PutArchive(ctx context.Context, record *models.ArchivedAuction) error
}

// DynamoDBPutter is the subset of the DynamoDB client the mirror needs
type DynamoDBPutter interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDBOptions configures the DynamoDB client
type DynamoDBOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // optional, e.g. http://localhost:8000 for DynamoDB Local
}

// NewDynamoDBClient builds a DynamoDB client from static options
func NewDynamoDBClient(ctx context.Context, opts DynamoDBOptions) (*dynamodb.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// archiveItem is the DynamoDB representation of an archive record, keyed by bid_number
type archiveItem struct {
	BidNumber          string               `dynamodbav:"bid_number"`
	AuctionID          uint                 `dynamodbav:"auction_id"`
	StateTag           string               `dynamodbav:"state_tag"`
	DistanceMiles      *int                 `dynamodbav:"distance_miles,omitempty"`
	Stops              []string             `dynamodbav:"stops"`
	ReceivedAt         string               `dynamodbav:"received_at"`
	ClosedAt           string               `dynamodbav:"closed_at"`
	ArchivedAt         string               `dynamodbav:"archived_at"`
	Outcome            string               `dynamodbav:"outcome"`
	WinnerCarrierID    *string              `dynamodbav:"winner_carrier_id,omitempty"`
	WinnerAmountCents  *int64               `dynamodbav:"winner_amount_cents,omitempty"`
	BidCount           int                  `dynamodbav:"bid_count"`
	TotalBidCount      int                  `dynamodbav:"total_bid_count"`
	LowestAmountCents  *int64               `dynamodbav:"lowest_amount_cents,omitempty"`
	HighestAmountCents *int64               `dynamodbav:"highest_amount_cents,omitempty"`
	AverageAmountCents *int64               `dynamodbav:"average_amount_cents,omitempty"`
	HoursActive        float64              `dynamodbav:"hours_active"`
	Bids               []models.ArchivedBid `dynamodbav:"bids"`
}

// DynamoDBArchiveMirror writes archive records into a DynamoDB table. Writes are
// full-item puts keyed by bid number, so repeating one is harmless.
type DynamoDBArchiveMirror struct {
	client    DynamoDBPutter
	tableName string
}

func NewDynamoDBArchiveMirror(client DynamoDBPutter, tableName string) ArchiveMirror {
	return &DynamoDBArchiveMirror{client: client, tableName: tableName}
}

func (m *DynamoDBArchiveMirror) PutArchive(ctx context.Context, record *models.ArchivedAuction) error {
	item := archiveItem{
		BidNumber:          record.BidNumber,
		AuctionID:          record.AuctionID,
		StateTag:           record.StateTag,
		DistanceMiles:      record.DistanceMiles,
		Stops:              []string(record.Stops),
		ReceivedAt:         record.ReceivedAt.UTC().Format(time.RFC3339),
		ClosedAt:           record.ClosedAt.UTC().Format(time.RFC3339),
		ArchivedAt:         record.ArchivedAt.UTC().Format(time.RFC3339),
		Outcome:            record.Outcome.String(),
		WinnerCarrierID:    record.WinnerCarrierID,
		WinnerAmountCents:  record.WinnerAmountCents,
		BidCount:           record.BidCount,
		TotalBidCount:      record.TotalBidCount,
		LowestAmountCents:  record.LowestAmountCents,
		HighestAmountCents: record.HighestAmountCents,
		AverageAmountCents: record.AverageAmountCents,
		HoursActive:        record.HoursActive,
		Bids:               []models.ArchivedBid(record.Bids),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal archive item: %w", err)
	}

	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:              aws.String(m.tableName),
		Item:                   av,
		ReturnConsumedCapacity: types.ReturnConsumedCapacityNone,
	})
	if err != nil {
		return fmt.Errorf("put archive item %s: %w", record.BidNumber, err)
	}
	return nil
}

// NoopArchiveMirror is used when mirroring is disabled
type NoopArchiveMirror struct{}

func (NoopArchiveMirror) PutArchive(context.Context, *models.ArchivedAuction) error { return nil }
