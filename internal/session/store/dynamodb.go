package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	dbexpr "github.com/aws/aws-sdk-go/service/dynamodb/expression"
	"github.com/google/uuid"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

// Attribute and index names of the session table.
const (
	attrSessionID         = "sessionId"
	attrAuthSessionState  = "authSessionState"
	attrVendorSessionID   = "vendorSessionId"
	attrDocumentSelected  = "documentSelected"
	attrAuthCode          = "authorizationCode"
	attrAuthCodeExpiry    = "authorizationCodeExpiryDate"
	attrAccessToken       = "accessToken"
	attrAccessTokenExpiry = "accessTokenExpiryDate"

	vendorSessionIndex = "vendorSessionId-index"
	authCodeIndex      = "authorizationCode-index"
)

// sessionItem is the table row. Dates are Unix seconds; expiryDate doubles as
// the table TTL attribute.
type sessionItem struct {
	SessionID                   string `dynamodbav:"sessionId"`
	ClientID                    string `dynamodbav:"clientId"`
	ClientSessionID             string `dynamodbav:"clientSessionId"`
	RedirectURI                 string `dynamodbav:"redirectUri"`
	State                       string `dynamodbav:"state"`
	Subject                     string `dynamodbav:"subject"`
	AuthSessionState            string `dynamodbav:"authSessionState"`
	VendorSessionID             string `dynamodbav:"vendorSessionId,omitempty"`
	DocumentSelected            string `dynamodbav:"documentSelected,omitempty"`
	PersistentSessionID         string `dynamodbav:"persistentSessionId"`
	ClientIPAddress             string `dynamodbav:"clientIpAddress"`
	AttemptCount                int    `dynamodbav:"attemptCount"`
	AuthorizationCode           string `dynamodbav:"authorizationCode,omitempty"`
	AuthorizationCodeExpiryDate int64  `dynamodbav:"authorizationCodeExpiryDate,omitempty"`
	AccessToken                 string `dynamodbav:"accessToken,omitempty"`
	AccessTokenExpiryDate       int64  `dynamodbav:"accessTokenExpiryDate,omitempty"`
	ExpiryDate                  int64  `dynamodbav:"expiryDate"`
	CreatedDate                 int64  `dynamodbav:"createdDate"`
}

func unixSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnixSeconds(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

func sessionToItem(s *models.Session) sessionItem {
	return sessionItem{
		SessionID:                   s.ID.String(),
		ClientID:                    s.ClientID,
		ClientSessionID:             s.ClientSessionID,
		RedirectURI:                 s.RedirectURI,
		State:                       s.OAuthState,
		Subject:                     s.Subject,
		AuthSessionState:            s.AuthState.String(),
		VendorSessionID:             s.VendorSessionID.String(),
		DocumentSelected:            s.DocumentSelected,
		PersistentSessionID:         s.PersistentSessionID,
		ClientIPAddress:             s.ClientIPAddress,
		AttemptCount:                s.AttemptCount,
		AuthorizationCode:           s.AuthorizationCode,
		AuthorizationCodeExpiryDate: unixSeconds(s.AuthorizationCodeExpiry),
		AccessToken:                 s.AccessToken,
		AccessTokenExpiryDate:       unixSeconds(s.AccessTokenExpiry),
		ExpiryDate:                  unixSeconds(s.ExpiresAt),
		CreatedDate:                 unixSeconds(s.CreatedAt),
	}
}

func itemToSession(item sessionItem) (*models.Session, error) {
	sessionID, err := uuid.Parse(item.SessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	state, err := models.ParseAuthState(item.AuthSessionState)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		ID:                      id.SessionID(sessionID),
		ClientID:                item.ClientID,
		ClientSessionID:         item.ClientSessionID,
		RedirectURI:             item.RedirectURI,
		OAuthState:              item.State,
		Subject:                 item.Subject,
		AuthState:               state,
		VendorSessionID:         id.VendorSessionID(item.VendorSessionID),
		DocumentSelected:        item.DocumentSelected,
		PersistentSessionID:     item.PersistentSessionID,
		ClientIPAddress:         item.ClientIPAddress,
		AttemptCount:            item.AttemptCount,
		AuthorizationCode:       item.AuthorizationCode,
		AuthorizationCodeExpiry: fromUnixSeconds(item.AuthorizationCodeExpiryDate),
		AccessToken:             item.AccessToken,
		AccessTokenExpiry:       fromUnixSeconds(item.AccessTokenExpiryDate),
		ExpiresAt:               fromUnixSeconds(item.ExpiryDate),
		CreatedAt:               fromUnixSeconds(item.CreatedDate),
	}, nil
}

// dynamoAPI is the subset of the DynamoDB client used here.
type dynamoAPI interface {
	GetItemWithContext(ctx aws.Context, input *dynamodb.GetItemInput, opts ...request.Option) (*dynamodb.GetItemOutput, error)
	PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error)
	QueryWithContext(ctx aws.Context, input *dynamodb.QueryInput, opts ...request.Option) (*dynamodb.QueryOutput, error)
	UpdateItemWithContext(ctx aws.Context, input *dynamodb.UpdateItemInput, opts ...request.Option) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore keeps sessions in a DynamoDB table keyed by sessionId with
// global secondary indexes on vendorSessionId and authorizationCode.
type DynamoStore struct {
	client dynamoAPI
	table  string
}

// NewDynamo wraps a client, usually dynamodb.New(session).
func NewDynamo(client dynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func isConditionFailure(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}

func (s *DynamoStore) Create(ctx context.Context, session *models.Session) error {
	if err := validateNew(session); err != nil {
		return err
	}
	item, err := dynamodbattribute.MarshalMap(sessionToItem(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	expr, err := dbexpr.NewBuilder().
		WithCondition(dbexpr.AttributeNotExists(dbexpr.Name(attrSessionID))).
		Build()
	if err != nil {
		return fmt.Errorf("build create condition: %w", err)
	}

	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionFailure(err) {
		return errSessionExists
	}
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *DynamoStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	out, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]*dynamodb.AttributeValue{
			attrSessionID: {S: aws.String(sessionID.String())},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, errSessionNotFound
	}
	var item sessionItem
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return itemToSession(item)
}

func (s *DynamoStore) FindByVendorSessionID(ctx context.Context, vendorSessionID id.VendorSessionID) (*models.Session, error) {
	return s.findByIndex(ctx, vendorSessionIndex, attrVendorSessionID, vendorSessionID.String())
}

func (s *DynamoStore) FindByAuthorizationCode(ctx context.Context, code string) (*models.Session, error) {
	return s.findByIndex(ctx, authCodeIndex, attrAuthCode, code)
}

// findByIndex resolves the session id through a GSI, then re-reads the row
// consistently since index reads may lag the table.
func (s *DynamoStore) findByIndex(ctx context.Context, index, attr, value string) (*models.Session, error) {
	if value == "" {
		return nil, errSessionNotFound
	}
	expr, err := dbexpr.NewBuilder().
		WithKeyCondition(dbexpr.Key(attr).Equal(dbexpr.Value(value))).
		WithProjection(dbexpr.NamesList(dbexpr.Name(attrSessionID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", index, err)
	}
	out, err := s.client.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int64(2),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", index, err)
	}
	if len(out.Items) == 0 {
		return nil, errSessionNotFound
	}
	if len(out.Items) > 1 {
		return nil, fmt.Errorf("query %s: %d sessions share %s", index, len(out.Items), attr)
	}
	var keyOnly struct {
		SessionID string `dynamodbav:"sessionId"`
	}
	if err := dynamodbattribute.UnmarshalMap(out.Items[0], &keyOnly); err != nil {
		return nil, fmt.Errorf("unmarshal index row: %w", err)
	}
	parsed, err := uuid.Parse(keyOnly.SessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	return s.FindByID(ctx, id.SessionID(parsed))
}

// ConditionalUpdate sets only the attributes in fields, guarded by the
// current auth state. Cleared string fields are removed so they drop out of
// the secondary indexes.
func (s *DynamoStore) ConditionalUpdate(ctx context.Context, sessionID id.SessionID, expected []models.AuthState, fields models.Fields) error {
	if len(expected) == 0 {
		return errStateMismatch
	}
	update := dbexpr.Set(dbexpr.Name(attrAuthSessionState), dbexpr.Value(fields.AuthState.String()))
	update = setOrRemove(update, attrDocumentSelected, fields.DocumentSelected)
	update = setOrRemove(update, attrAuthCode, fields.AuthorizationCode)
	update = setOrRemove(update, attrAccessToken, fields.AccessToken)
	update = setOrRemoveTime(update, attrAuthCodeExpiry, fields.AuthorizationCodeExpiry)
	update = setOrRemoveTime(update, attrAccessTokenExpiry, fields.AccessTokenExpiry)

	states := make([]dbexpr.OperandBuilder, len(expected))
	for i, st := range expected {
		states[i] = dbexpr.Value(st.String())
	}
	cond := dbexpr.AttributeExists(dbexpr.Name(attrSessionID)).
		And(dbexpr.Name(attrAuthSessionState).In(states[0], states[1:]...))

	if fields.VendorSessionID != nil {
		vendorID := fields.VendorSessionID.String()
		update = update.Set(dbexpr.Name(attrVendorSessionID), dbexpr.Value(vendorID))
		cond = cond.And(dbexpr.Or(
			dbexpr.AttributeNotExists(dbexpr.Name(attrVendorSessionID)),
			dbexpr.Name(attrVendorSessionID).Equal(dbexpr.Value(vendorID)),
		))
	}

	expr, err := dbexpr.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build session update: %w", err)
	}
	_, err = s.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			attrSessionID: {S: aws.String(sessionID.String())},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailure(err) {
		if _, ferr := s.FindByID(ctx, sessionID); errors.Is(ferr, errSessionNotFound) {
			return errSessionNotFound
		}
		return errStateMismatch
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func setOrRemove(update dbexpr.UpdateBuilder, attr string, value *string) dbexpr.UpdateBuilder {
	switch {
	case value == nil:
		return update
	case *value == "":
		return update.Remove(dbexpr.Name(attr))
	default:
		return update.Set(dbexpr.Name(attr), dbexpr.Value(*value))
	}
}

func setOrRemoveTime(update dbexpr.UpdateBuilder, attr string, value *time.Time) dbexpr.UpdateBuilder {
	switch {
	case value == nil:
		return update
	case value.IsZero():
		return update.Remove(dbexpr.Name(attr))
	default:
		return update.Set(dbexpr.Name(attr), dbexpr.Value(value.Unix()))
	}
}
