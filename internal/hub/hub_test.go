package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"fleetline/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fan-out")
		return nil
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	h := runHub(t)

	client := NewClient("c1", 8)
	h.Subscribe(client, []string{domain.ChannelVehicleLocation})

	event := domain.PositionEvent{ID: "KAA-001", Lat: -1.28, Lon: 36.82}
	h.Publish(domain.ChannelVehicleLocation, event)

	var msg eventMessage
	if err := json.Unmarshal(recv(t, client), &msg); err != nil {
		t.Fatalf("unmarshal fan-out message: %v", err)
	}
	if msg.Type != "event" || msg.Channel != domain.ChannelVehicleLocation {
		t.Errorf("message header = %+v", msg)
	}
	if msg.Payload != event {
		t.Errorf("payload = %+v, want %+v", msg.Payload, event)
	}
}

func TestPublishSkipsOtherChannels(t *testing.T) {
	h := runHub(t)

	vehicleObs := NewClient("c1", 8)
	passengerObs := NewClient("c2", 8)
	h.Subscribe(vehicleObs, []string{domain.ChannelVehicleLocation})
	h.Subscribe(passengerObs, []string{domain.ChannelPassengerLocation})

	h.Publish(domain.ChannelPassengerLocation, domain.PositionEvent{ID: "p1"})

	recv(t, passengerObs)

	select {
	case data := <-vehicleObs.Send:
		t.Errorf("vehicle observer received passenger event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	h := runHub(t)

	a := NewClient("a", 8)
	b := NewClient("b", 8)
	h.Subscribe(a, []string{domain.ChannelVehicleLocation})
	h.Subscribe(b, []string{domain.ChannelVehicleLocation})

	h.Publish(domain.ChannelVehicleLocation, domain.PositionEvent{ID: "v1"})

	recv(t, a)
	recv(t, b)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := runHub(t)

	client := NewClient("c1", 8)
	h.Subscribe(client, []string{domain.ChannelVehicleLocation})
	h.Unsubscribe(client, []string{domain.ChannelVehicleLocation})

	h.Publish(domain.ChannelVehicleLocation, domain.PositionEvent{ID: "v1"})

	select {
	case data := <-client.Send:
		t.Errorf("unsubscribed client received event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowClientDoesNotBlockPublish(t *testing.T) {
	h := runHub(t)

	slow := NewClient("slow", 1)
	h.Subscribe(slow, []string{domain.ChannelVehicleLocation})

	// Fill the buffer, then keep publishing; nothing may deadlock.
	for i := 0; i < 10; i++ {
		h.Publish(domain.ChannelVehicleLocation, domain.PositionEvent{ID: "v1"})
	}

	fresh := NewClient("fresh", 8)
	h.Subscribe(fresh, []string{domain.ChannelVehicleLocation})
	h.Publish(domain.ChannelVehicleLocation, domain.PositionEvent{ID: "v2"})
	recv(t, fresh)
}

func TestUnregisterClosesSend(t *testing.T) {
	h := runHub(t)

	client := NewClient("c1", 8)
	h.Register(client)
	h.Subscribe(client, []string{domain.ChannelVehicleLocation})
	h.Unregister(client)

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-client.Send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Send channel not closed after unregister")
		}
	}
}
