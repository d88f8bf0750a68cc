package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Client is the subset of paho.Client the ingest uses.
type Client interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

// Connect dials the broker. optsFunc may tweak the options before connecting.
func Connect(broker, clientID string, optsFunc func(*paho.ClientOptions)) (Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetCleanSession(true)

	if optsFunc != nil {
		optsFunc(opts)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}
