package engine

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowgate/flowgate/pkg/domain"
)

// maxLineBytes bounds a single JSONL message.
const maxLineBytes = 256 * 1024

// ParseWorkflow decodes a JSONL workflow stream: zero or more
// operationUpdate messages followed by exactly one beginExecution as the
// final message. Redefining an operation id replaces the earlier
// definition. The batched legacy form ({"operationUpdate":{...}}) is
// rejected.
func ParseWorkflow(data []byte) (*domain.Workflow, *domain.Error) {
	wf := &domain.Workflow{
		Operations: make(map[string]*domain.Operation),
	}

	sum := sha256.Sum256(data)
	wf.Hash = hex.EncodeToString(sum[:])

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	sawBegin := false
	lineNo := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lineNo++

		if sawBegin {
			return nil, domain.NewStructureError("beginExecution must be the final message").
				WithContext("line", lineNo)
		}

		var probe map[string]json.RawMessage
		if err := json.Unmarshal(line, &probe); err != nil {
			return nil, domain.NewStructureError(fmt.Sprintf("line %d is not a JSON object", lineNo)).
				WithContext("line", lineNo)
		}
		if _, batched := probe["operationUpdate"]; batched {
			return nil, domain.NewStructureError("batched operationUpdate messages are not supported").
				WithContext("line", lineNo).
				WithSuggestion("send one {\"type\":\"operationUpdate\",...} message per line")
		}

		var msgType string
		if raw, ok := probe["type"]; ok {
			_ = json.Unmarshal(raw, &msgType)
		}

		switch msgType {
		case domain.MessageOperationUpdate:
			if derr := parseOperationUpdate(line, lineNo, wf); derr != nil {
				return nil, derr
			}
		case domain.MessageBeginExecution:
			if derr := parseBeginExecution(line, lineNo, wf); derr != nil {
				return nil, derr
			}
			sawBegin = true
		default:
			return nil, domain.NewStructureError(fmt.Sprintf("unknown message type %q", msgType)).
				WithContext("line", lineNo).
				WithSuggestion("expected operationUpdate or beginExecution")
		}
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, domain.NewStructureError("workflow line exceeds the message size limit").
				WithContext("maxBytes", maxLineBytes)
		}
		return nil, domain.NewStructureError("read workflow stream: " + err.Error())
	}

	if !sawBegin {
		return nil, domain.NewStructureError("workflow stream is missing a beginExecution message").
			WithSuggestion("terminate the stream with {\"type\":\"beginExecution\",\"operationOrder\":[...]}")
	}
	return wf, nil
}

func parseOperationUpdate(line []byte, lineNo int, wf *domain.Workflow) *domain.Error {
	var msg domain.OperationDefinition
	if err := json.Unmarshal(line, &msg); err != nil {
		return domain.NewStructureError("malformed operationUpdate message").
			WithContext("line", lineNo)
	}
	if !domain.OperationIDPattern.MatchString(msg.OperationID) {
		return domain.NewStructureError(fmt.Sprintf("invalid operation id %q", msg.OperationID)).
			WithContext("line", lineNo).
			WithSuggestion("operation ids use [A-Za-z0-9_-], at most 100 characters")
	}
	if len(msg.Operation) != 1 {
		return domain.NewStructureError(
			fmt.Sprintf("operation %q must carry exactly one kind, got %d", msg.OperationID, len(msg.Operation))).
			WithOperation(msg.OperationID)
	}

	var kind string
	var rawArgs json.RawMessage
	for k, v := range msg.Operation {
		kind, rawArgs = k, v
	}

	var args map[string]any
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return domain.NewStructureError(
			fmt.Sprintf("operation %q arguments must be a JSON object", msg.OperationID)).
			WithOperation(msg.OperationID)
	}

	op := &domain.Operation{
		ID:     msg.OperationID,
		Kind:   kind,
		Args:   args,
		Status: domain.OpPending,
	}
	if _, seen := wf.Operations[msg.OperationID]; !seen {
		wf.Defined = append(wf.Defined, msg.OperationID)
	}
	wf.Operations[msg.OperationID] = op
	return nil
}

func parseBeginExecution(line []byte, lineNo int, wf *domain.Workflow) *domain.Error {
	var msg domain.BeginExecution
	if err := json.Unmarshal(line, &msg); err != nil {
		return domain.NewStructureError("malformed beginExecution message").
			WithContext("line", lineNo)
	}
	wf.ExecutionID = msg.ExecutionID
	if wf.ExecutionID == "" {
		wf.ExecutionID = uuid.NewString()
	}
	wf.Order = msg.OperationOrder
	return nil
}
