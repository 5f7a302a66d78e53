// Package workerproc decodes analysis completion notifications and drives the
// queue polling loop that hands them to the pipeline.
package workerproc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// DocumentLocation is the analysed object as echoed by the engine.
type DocumentLocation struct {
	S3ObjectName string `json:"S3ObjectName,omitempty"`
	S3Bucket     string `json:"S3Bucket,omitempty"`
}

// Notification is a job completion event in the engine's direct format.
type Notification struct {
	JobID            string           `json:"JobId"`
	Status           string           `json:"Status"`
	API              string           `json:"API,omitempty"`
	JobTag           string           `json:"JobTag,omitempty"`
	Timestamp        int64            `json:"Timestamp,omitempty"`
	DocumentLocation DocumentLocation `json:"DocumentLocation"`
}

// snsEnvelope is the wrapper SNS adds when a topic fans out to a queue.
type snsEnvelope struct {
	Type      string `json:"Type"`
	MessageID string `json:"MessageId,omitempty"`
	TopicArn  string `json:"TopicArn,omitempty"`
	Message   string `json:"Message"`
}

const snsNotificationType = "Notification"

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrUnrecognizedEnvelope indicates valid JSON in neither known format.
type ErrUnrecognizedEnvelope struct {
	Meta MessageMeta
}

func (e ErrUnrecognizedEnvelope) Error() string { return "unrecognized notification envelope" }

// ParseNotification accepts the direct format and the SNS-wrapped format and
// normalizes both to a Notification.
func ParseNotification(body string) (Notification, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return Notification{}, meta, ErrEmptyBody{Meta: meta}
	}

	var envelope struct {
		snsEnvelope
		Notification
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return Notification{}, meta, ErrDecode{Meta: meta, Err: err}
	}

	if envelope.Type == snsNotificationType && strings.TrimSpace(envelope.Message) != "" {
		var inner Notification
		if err := json.Unmarshal([]byte(envelope.Message), &inner); err != nil {
			return Notification{}, meta, ErrDecode{Meta: meta, Err: err}
		}
		if !inner.valid() {
			return Notification{}, meta, ErrUnrecognizedEnvelope{Meta: meta}
		}
		return inner, meta, nil
	}
	if envelope.Notification.valid() {
		return envelope.Notification, meta, nil
	}
	return Notification{}, meta, ErrUnrecognizedEnvelope{Meta: meta}
}

// valid requires the full JobId, Status and API triple.
func (n Notification) valid() bool {
	return strings.TrimSpace(n.JobID) != "" &&
		strings.TrimSpace(n.Status) != "" &&
		strings.TrimSpace(n.API) != ""
}

// EncodeDirect renders n in the engine's direct format.
func EncodeDirect(n Notification) ([]byte, error) {
	return json.Marshal(n)
}

// EncodeWrapped renders n inside an SNS notification envelope.
func EncodeWrapped(n Notification, messageID, topicARN string) ([]byte, error) {
	inner, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snsEnvelope{
		Type:      snsNotificationType,
		MessageID: messageID,
		TopicArn:  topicARN,
		Message:   string(inner),
	})
}
