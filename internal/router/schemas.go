package router

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Common parameter shapes. A method absent from paramSchemas accepts any
// params object, or none at all.
const (
	schemaMarketID = `{
		"type": "object",
		"required": ["marketId"],
		"properties": {"marketId": {"type": "string", "minLength": 1}}
	}`

	schemaPostID = `{
		"type": "object",
		"required": ["postId"],
		"properties": {"postId": {"type": "string", "minLength": 1}}
	}`

	schemaAgentID = `{
		"type": "object",
		"required": ["agentId"],
		"properties": {"agentId": {"type": "string", "minLength": 1}}
	}`

	schemaPoolID = `{
		"type": "object",
		"required": ["poolId"],
		"properties": {"poolId": {"type": "string", "minLength": 1}}
	}`

	schemaCoalitionID = `{
		"type": "object",
		"required": ["coalitionId"],
		"properties": {"coalitionId": {"type": "string", "minLength": 1}}
	}`

	schemaRequestID = `{
		"type": "object",
		"required": ["requestId"],
		"properties": {"requestId": {"type": "string", "minLength": 1}}
	}`
)

// paramSchemas declares the JSON Schema for every method with required
// parameters. Compiled once at router construction.
var paramSchemas = map[string]string{
	"a2a.authenticate": `{
		"type": "object",
		"required": ["address", "tokenId"],
		"properties": {
			"address": {"type": "string", "minLength": 1},
			"tokenId": {"type": "integer", "minimum": 0},
			"capabilities": {
				"type": "object",
				"properties": {
					"strategies": {"type": "array", "items": {"type": "string"}},
					"markets": {"type": "array", "items": {"type": "string"}},
					"actions": {"type": "array", "items": {"type": "string"}},
					"version": {"type": "string"}
				}
			}
		}
	}`,
	"a2a.getAgentInfo": schemaAgentID,

	// getMarketData has no schema: marketId is optional, and with no
	// params at all the delegate returns the full market listing.
	"a2a.getMarketPrice": schemaMarketID,
	"a2a.getPrediction":  schemaMarketID,
	"a2a.buyShares": `{
		"type": "object",
		"required": ["marketId", "outcome", "amount"],
		"properties": {
			"marketId": {"type": "string", "minLength": 1},
			"outcome": {"type": "string", "enum": ["YES", "NO"]},
			"amount": {"type": "integer", "minimum": 1}
		}
	}`,
	"a2a.sellShares": `{
		"type": "object",
		"required": ["marketId", "outcome", "amount"],
		"properties": {
			"marketId": {"type": "string", "minLength": 1},
			"outcome": {"type": "string", "enum": ["YES", "NO"]},
			"amount": {"type": "integer", "minimum": 1}
		}
	}`,

	"a2a.createPost": `{
		"type": "object",
		"required": ["content"],
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"type": {"type": "string"}
		}
	}`,
	"a2a.getPost":     schemaPostID,
	"a2a.likePost":    schemaPostID,
	"a2a.unlikePost":  schemaPostID,
	"a2a.getComments": schemaPostID,
	"a2a.createComment": `{
		"type": "object",
		"required": ["postId", "content"],
		"properties": {
			"postId": {"type": "string", "minLength": 1},
			"content": {"type": "string", "minLength": 1}
		}
	}`,
	"a2a.followAgent":   schemaAgentID,
	"a2a.unfollowAgent": schemaAgentID,

	"a2a.searchAgents": `{
		"type": "object",
		"required": ["query"],
		"properties": {"query": {"type": "string"}}
	}`,

	"a2a.sendMessage": `{
		"type": "object",
		"required": ["to", "content"],
		"properties": {
			"to": {"type": "string", "minLength": 1},
			"content": {"type": "string", "minLength": 1}
		}
	}`,
	"a2a.getConversation": schemaAgentID,
	"a2a.markRead":        schemaAgentID,
	"a2a.deleteMessage": `{
		"type": "object",
		"required": ["messageId"],
		"properties": {"messageId": {"type": "string", "minLength": 1}}
	}`,

	"a2a.markNotificationRead": `{
		"type": "object",
		"required": ["notificationId"],
		"properties": {"notificationId": {"type": "string", "minLength": 1}}
	}`,

	"a2a.getPool":        schemaPoolID,
	"a2a.joinPool":       schemaPoolID,
	"a2a.leavePool":      schemaPoolID,
	"a2a.getPoolMembers": schemaPoolID,

	"a2a.applyReferralCode": `{
		"type": "object",
		"required": ["code"],
		"properties": {"code": {"type": "string", "minLength": 1}}
	}`,

	"a2a.endorseAgent": `{
		"type": "object",
		"required": ["agentId"],
		"properties": {
			"agentId": {"type": "string", "minLength": 1},
			"reason": {"type": "string"}
		}
	}`,

	"a2a.subscribeMarket":      schemaMarketID,
	"a2a.unsubscribeMarket":    schemaMarketID,
	"a2a.getMarketSubscribers": schemaMarketID,

	"a2a.proposeCoalition": `{
		"type": "object",
		"required": ["name", "targetMarket", "strategy", "minMembers", "maxMembers"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"targetMarket": {"type": "string", "minLength": 1},
			"strategy": {"type": "string"},
			"minMembers": {"type": "integer", "minimum": 1},
			"maxMembers": {"type": "integer", "minimum": 1}
		}
	}`,
	"a2a.joinCoalition":    schemaCoalitionID,
	"a2a.leaveCoalition":   schemaCoalitionID,
	"a2a.disbandCoalition": schemaCoalitionID,
	"a2a.getCoalition":     schemaCoalitionID,

	"a2a.shareAnalysis": `{
		"type": "object",
		"required": ["marketId", "summary"],
		"properties": {
			"marketId": {"type": "string", "minLength": 1},
			"summary": {"type": "string", "minLength": 1},
			"data": {"type": "object"}
		}
	}`,
	"a2a.getSharedAnalyses": schemaMarketID,

	"a2a.createPaymentRequest": `{
		"type": "object",
		"required": ["to", "amount", "service"],
		"properties": {
			"from": {"type": "string"},
			"to": {"type": "string", "minLength": 1},
			"amount": {"type": "string", "pattern": "^[0-9]+$"},
			"service": {"type": "string", "minLength": 1},
			"metadata": {"type": "object"}
		}
	}`,
	"a2a.getPaymentRequest":    schemaRequestID,
	"a2a.cancelPaymentRequest": schemaRequestID,
	"a2a.getPaymentStatus":     schemaRequestID,
	"a2a.submitPaymentProof": `{
		"type": "object",
		"required": ["requestId", "txHash"],
		"properties": {
			"requestId": {"type": "string", "minLength": 1},
			"txHash": {"type": "string", "pattern": "^0x[0-9a-fA-F]{64}$"},
			"from": {"type": "string"},
			"to": {"type": "string"},
			"amount": {"type": "string"},
			"timestamp": {"type": "integer"},
			"confirmed": {"type": "boolean"}
		}
	}`,
}

// compileSchemas validates and compiles every declared schema. Every
// schema must name a cataloged method; that direction of the completeness
// check lives here, the handler direction in newMethodTable.
func compileSchemas(table map[string]methodInfo) (map[string]*gojsonschema.Schema, error) {
	compiled := make(map[string]*gojsonschema.Schema, len(paramSchemas))
	for method, raw := range paramSchemas {
		if _, ok := table[method]; !ok {
			return nil, fmt.Errorf("schema declared for unknown method %s", method)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", method, err)
		}
		compiled[method] = schema
	}
	return compiled, nil
}

// validateParams checks raw params bytes against a compiled schema and
// reports the first violation.
func validateParams(schema *gojsonschema.Schema, raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return err
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("%s", errs[0].String())
		}
		return fmt.Errorf("params failed validation")
	}
	return nil
}
