package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/chargesim/core/model"
)

// TestIntegration publishes to a real Mosquitto broker and reads the retained
// message back with a fresh subscriber.
func TestIntegration(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:1.6",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	var pub *PahoPublisher
	for i := 0; i < 5; i++ {
		pub, err = NewPahoPublisher(Config{Broker: broker, ClientID: "pub", QoS: 1})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer pub.Disconnect()

	sim := testSimulation()
	if err := pub.PublishSimulation(ctx, sim); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgCh := make(chan []byte, 1)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("sub"))
	if tok := sub.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscriber connect: %v", tok.Error())
	}
	defer sub.Disconnect(250)
	topic := SimulationTopic(DefaultTopicPrefix, sim.ID)
	if tok := sub.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		msgCh <- m.Payload()
	}); tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}

	select {
	case payload := <-msgCh:
		var got model.Simulation
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ID != sim.ID || got.Outputs.ActualMaxPower != sim.Outputs.ActualMaxPower {
			t.Fatalf("unexpected retained payload: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for retained message")
	}
}
