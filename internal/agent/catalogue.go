package agent

import "github.com/cassidy/journal-core/internal/domain"

// conversationConfig is one registry entry: a system-prompt fragment
// plus the tools available for that conversation type. spec.md §9
// mandates a fixed registry, not subclassing — grounded on
// original_source's tools.py::get_tools_for_conversation_type and
// factory.py::_get_system_prompt, which are exactly this shape of
// string-keyed dispatch in the original.
type conversationConfig struct {
	systemPromptFragment string
	tools                []Tool
}

var catalogueRegistry = map[domain.ConversationType]conversationConfig{
	domain.ConversationTypeJournaling: {
		systemPromptFragment: "Your job is to help the user turn what they say into a structured journal " +
			"entry. Call structure_journal whenever the user shares content worth recording. Only call " +
			"save_journal with confirm=true once the user has clearly asked you to save or finalize the " +
			"entry — never infer confirmation from silence.",
		tools: []Tool{
			structureJournalTool,
			saveJournalTool,
			updatePreferencesTool,
			getTemplateInfoTool,
			reloadTemplateTool,
			createTaskTool,
			listTasksTool,
			completeTaskTool,
			deleteTaskTool,
			updateTaskTool,
		},
	},
}

// For implements agent.Catalogue.For(conversationType) from spec.md §9:
// a lookup into the fixed registry, defaulting to the journaling
// configuration for any unrecognized type so a turn is never left with
// zero tools.
func For(conversationType domain.ConversationType) (string, []Tool) {
	cfg, ok := catalogueRegistry[conversationType]
	if !ok {
		cfg = catalogueRegistry[domain.ConversationTypeJournaling]
	}
	return cfg.systemPromptFragment, cfg.tools
}

func toolByName(toolset []Tool, name string) (Tool, bool) {
	for _, t := range toolset {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
