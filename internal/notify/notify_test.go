package notify

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingChannel struct {
	name string
	err  error
	got  []Rendered
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Deliver(_ context.Context, _ Message, r Rendered) error {
	c.got = append(c.got, r)
	return c.err
}

func readyMessage() Message {
	return Message{
		Recipient: "user-1",
		Kind:      KindPickupReady,
		Data: map[string]string{
			"orderId":       "order-1",
			"pack":          "Bakery box",
			"establishment": "Le Pain",
			"address":       "1 Main St",
			"phone":         "+1 555 0100",
			"pickupStart":   "18:00",
			"pickupEnd":     "19:30",
		},
	}
}

func TestRender(t *testing.T) {
	r, err := Render(KindPickupReady, readyMessage().Data)
	require.NoError(t, err)
	assert.Equal(t, "Bakery box is ready for pickup", r.Title)
	assert.Contains(t, r.Body, "1 Main St")
	assert.Contains(t, r.Body, "+1 555 0100")
	assert.Contains(t, r.Body, "18:00 - 19:30")

	r, err = Render(KindOrderCancelled, map[string]string{"orderId": "o1", "pack": "Box"})
	require.NoError(t, err)
	assert.Equal(t, "Order o1 for Box was cancelled.", r.Body)

	_, err = Render(Kind("nope"), nil)
	assert.Error(t, err)
}

func TestDispatcherContinuesAfterChannelFailure(t *testing.T) {
	failing := &recordingChannel{name: "push", err: errors.New("fcm down")}
	ok := &recordingChannel{name: "email"}
	d := NewDispatcher(nil, failing, ok)

	err := d.Send(context.Background(), readyMessage())
	assert.ErrorContains(t, err, "fcm down")
	assert.Len(t, failing.got, 1)
	assert.Len(t, ok.got, 1)
}

func TestDispatcherRejectsMissingRecipient(t *testing.T) {
	d := NewDispatcher(nil)
	assert.Error(t, d.Send(context.Background(), Message{Kind: KindPickupReady}))
}

type fakeNotificationRepo struct {
	created []*model.Notification
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	f.created = append(f.created, n)
	return nil
}
func (f *fakeNotificationRepo) ListByUser(context.Context, string, bool, int) ([]model.Notification, error) {
	return nil, nil
}
func (f *fakeNotificationRepo) MarkAllRead(context.Context, string) error         { return nil }
func (f *fakeNotificationRepo) MarkByOrder(context.Context, string, string) error { return nil }
func (f *fakeNotificationRepo) CountUnread(context.Context, string) (int64, error) {
	return 0, nil
}
func (f *fakeNotificationRepo) SetDB(*gorm.DB) {}

func TestInAppChannel(t *testing.T) {
	repo := &fakeNotificationRepo{}
	msg := readyMessage()
	msg.Data["establishmentId"] = "42"
	r, _ := Render(msg.Kind, msg.Data)

	require.NoError(t, NewInAppChannel(repo).Deliver(context.Background(), msg, r))
	require.Len(t, repo.created, 1)
	n := repo.created[0]
	assert.Equal(t, "user-1", n.UserUID)
	assert.Equal(t, string(KindPickupReady), n.Type)
	require.NotNil(t, n.OrderID)
	assert.Equal(t, "order-1", *n.OrderID)
	require.NotNil(t, n.EstablishmentID)
	assert.Equal(t, uint64(42), *n.EstablishmentID)
}

type fakeTokens struct {
	tokens  []string
	deleted []string
}

func (f *fakeTokens) Upsert(context.Context, *model.DeviceToken) error { return nil }
func (f *fakeTokens) ListTokens(context.Context, string) ([]string, error) {
	return f.tokens, nil
}
func (f *fakeTokens) DeleteTokens(_ context.Context, tokens []string) error {
	f.deleted = append(f.deleted, tokens...)
	return nil
}
func (f *fakeTokens) SetDB(*gorm.DB) {}

type fakeFCM struct {
	msg  *messaging.MulticastMessage
	resp *messaging.BatchResponse
}

func (f *fakeFCM) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.msg = m
	return f.resp, nil
}

func TestPushChannel(t *testing.T) {
	tokens := &fakeTokens{tokens: []string{"tok-a", "tok-b"}}
	fcm := &fakeFCM{resp: &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 1,
		Responses: []*messaging.SendResponse{
			{Success: true, MessageID: "m1"},
			{Success: false, Error: errors.New("transient")},
		},
	}}
	msg := readyMessage()
	r, _ := Render(msg.Kind, msg.Data)

	require.NoError(t, NewPushChannel(fcm, tokens, nil).Deliver(context.Background(), msg, r))
	require.NotNil(t, fcm.msg)
	assert.Equal(t, []string{"tok-a", "tok-b"}, fcm.msg.Tokens)
	assert.Equal(t, "pickup_ready", fcm.msg.Data["kind"])
	assert.Equal(t, r.Title, fcm.msg.Notification.Title)
	assert.Empty(t, tokens.deleted)
}

func TestPushChannelNoDevices(t *testing.T) {
	fcm := &fakeFCM{}
	err := NewPushChannel(fcm, &fakeTokens{}, nil).Deliver(context.Background(), readyMessage(), Rendered{})
	assert.NoError(t, err)
	assert.Nil(t, fcm.msg)
}

type fakeSender struct {
	to, subject, body string
}

func (f *fakeSender) SendEmail(_ context.Context, to, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return nil
}

type fakeUsers struct {
	email string
	err   error
}

func (f fakeUsers) GetUser(context.Context, string) (*auth.UserRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "user-1", Email: f.email}}, nil
}

func TestEmailChannelResolvesAddress(t *testing.T) {
	sender := &fakeSender{}
	r := Rendered{Title: "t", Body: "b"}
	require.NoError(t, NewEmailChannel(sender, fakeUsers{email: "eater@example.com"}).Deliver(context.Background(), readyMessage(), r))
	assert.Equal(t, "eater@example.com", sender.to)
	assert.Equal(t, "t", sender.subject)

	msg := readyMessage()
	msg.Email = "owner@bakery.test"
	require.NoError(t, NewEmailChannel(sender, fakeUsers{err: errors.New("unused")}).Deliver(context.Background(), msg, r))
	assert.Equal(t, "owner@bakery.test", sender.to)
}

func TestEmailChannelLookupFailure(t *testing.T) {
	err := NewEmailChannel(&fakeSender{}, fakeUsers{err: errors.New("no user")}).Deliver(context.Background(), readyMessage(), Rendered{})
	assert.ErrorContains(t, err, "no user")
}
