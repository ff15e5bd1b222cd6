package http

import (
	"bytes"
	"encoding/json"

	"github.com/vovakirdan/wireboard-server/internal/core"
	"github.com/vovakirdan/wireboard-server/internal/proto"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func invalidMessage(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: msg}
}

// inboundToCommand maps a board message to a core command. hello and join
// need session state and are handled by the session itself.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeLeave:
		var leave proto.LeaveData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, invalidMessage("malformed leave payload")
		}
		return &core.Command{Kind: core.CommandLeaveBoard, Board: leave.Board}, nil
	case proto.InboundTypeState:
		var state proto.StateData
		if err := json.Unmarshal(inbound.Data, &state); err != nil {
			return nil, invalidMessage("malformed state payload")
		}
		if state.Board == "" {
			return nil, badRequest("board is required")
		}
		raw := bytes.TrimSpace(state.Elements)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return nil, badRequest("elements is required")
		}
		elements, err := core.DecodeElements(raw)
		if err != nil {
			return nil, badRequest("elements must be an array of objects")
		}
		return &core.Command{Kind: core.CommandSubmitState, Board: state.Board, Elements: elements}, nil
	case proto.InboundTypeCursor:
		var cur proto.CursorData
		if err := json.Unmarshal(inbound.Data, &cur); err != nil {
			return nil, invalidMessage("malformed cursor payload")
		}
		return &core.Command{
			Kind:  core.CommandReportCursor,
			Board: cur.Board,
			Cursor: core.CursorSample{
				X:     cur.X,
				Y:     cur.Y,
				Label: cur.Label,
				TS:    cur.TS,
			},
		}, nil
	case proto.InboundTypeResync:
		var resync proto.ResyncData
		if err := json.Unmarshal(inbound.Data, &resync); err != nil {
			return nil, invalidMessage("malformed resync payload")
		}
		return &core.Command{Kind: core.CommandResync, Board: resync.Board}, nil
	default:
		return nil, invalidMessage("unknown message type")
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventState:
		elements, err := core.EncodeElements(event.Elements)
		if err != nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "internal", Msg: "encode state"}}
		}
		data := proto.EventStateData{
			Board:    event.Board,
			Elements: elements,
			Version:  event.Version,
			From:     event.From,
		}
		if !event.UpdatedAt.IsZero() {
			data.UpdatedAt = event.UpdatedAt.UnixMilli()
		}
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventState, Data: data}
	case core.EventPresence:
		users := make([]proto.PresenceUser, 0, len(event.Members))
		for _, m := range event.Members {
			users = append(users, proto.PresenceUser{ID: m.ConnID, UserID: m.UserID, Email: m.Email})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresence,
			Data:  proto.EventPresenceData{Board: event.Board, Users: users},
		}
	case core.EventCursor:
		if event.Cursor == nil {
			return proto.Outbound{Type: proto.OutboundTypeEvent}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventCursor,
			Data: proto.EventCursorData{
				Board:  event.Board,
				ID:     event.Cursor.ConnID,
				UserID: event.Cursor.UserID,
				X:      event.Cursor.X,
				Y:      event.Cursor.Y,
				Label:  event.Cursor.Label,
				TS:     event.Cursor.TS,
			},
		}
	case core.EventCursorGone:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventCursorGone,
			Data:  proto.EventCursorGoneData{Board: event.Board, IDs: event.CursorIDs},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
