package store

import (
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/reliefhub/reliefhub/models"
)

// toSqlizer translates a filter tree into a squirrel predicate. Hierarchy
// nodes must have been expanded into plain IN nodes beforehand (see
// [RowStore.expandHierarchy]); encountering one here is an error.
func toSqlizer(node *models.FilterNode) (squirrel.Sqlizer, error) {
	if node == nil {
		return nil, nil
	}

	if !node.Leaf() {
		if len(node.And) > 0 {
			conj := make(squirrel.And, 0, len(node.And))
			for _, child := range node.And {
				s, err := toSqlizer(child)
				if err != nil {
					return nil, err
				}
				conj = append(conj, s)
			}
			return conj, nil
		}

		disj := make(squirrel.Or, 0, len(node.Or))
		for _, child := range node.Or {
			s, err := toSqlizer(child)
			if err != nil {
				return nil, err
			}
			disj = append(disj, s)
		}
		return disj, nil
	}

	switch node.Op {
	case models.OpEqual:
		return squirrel.Eq{node.Field: node.Value}, nil
	case models.OpNotEqual:
		return squirrel.NotEq{node.Field: node.Value}, nil
	case models.OpLess:
		return squirrel.Lt{node.Field: node.Value}, nil
	case models.OpLessEq:
		return squirrel.LtOrEq{node.Field: node.Value}, nil
	case models.OpGreater:
		return squirrel.Gt{node.Field: node.Value}, nil
	case models.OpGreaterEq:
		return squirrel.GtOrEq{node.Field: node.Value}, nil
	case models.OpIn:
		// squirrel renders Eq with a slice value as IN (...)
		return squirrel.Eq{node.Field: node.Value}, nil
	case models.OpLike:
		return squirrel.Like{node.Field: fmt.Sprintf("%%%v%%", node.Value)}, nil
	case models.OpStartsWith:
		return squirrel.Like{node.Field: fmt.Sprintf("%v%%", node.Value)}, nil
	case models.OpBelongs:
		return nil, fmt.Errorf("%w: unexpanded hierarchy filter on %q", ErrUnknownOperator, node.Field)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, node.Op)
	}
}
