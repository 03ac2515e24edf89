package dispatch

import "larkticket/internal/approvalconfig"

// remapFields 将表单控件按 relation 映射到下游字段名。
// 返回映射结果、未命中的控件 id 以及没有匹配控件的 relation code
func remapFields(components []map[string]any, items []approvalconfig.RelationItem) (mapped map[string]any, dropped, unmatched []string) {
	relation := make(map[string]string, len(items))
	for _, item := range items {
		relation[item.Code] = item.APIKey
	}

	mapped = make(map[string]any)
	seen := make(map[string]bool)
	for _, component := range components {
		id, _ := component["id"].(string)
		key, ok := relation[id]
		if !ok {
			dropped = append(dropped, id)
			continue
		}
		mapped[key] = component
		seen[id] = true
	}

	for _, item := range items {
		if !seen[item.Code] {
			unmatched = append(unmatched, item.Code)
		}
	}
	return mapped, dropped, unmatched
}
