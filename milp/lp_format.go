package milp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
)

// WriteLP writes the problem in CPLEX LP format so it can be handed to
// an external engine (CBC, GLPK, HiGHS, ...).
func (p *Problem) WriteLP(w io.Writer) error {
	b := bufio.NewWriter(w)
	if p.Name != "" {
		fmt.Fprintf(b, "\\ %s\n", p.Name)
	}

	b.WriteString("Maximize\n obj:")
	p.writeTerms(b, p.Objective)
	b.WriteString("\nSubject To\n")
	for i, c := range p.Constraints {
		name := c.Name
		if name == "" {
			name = "c" + strconv.Itoa(i)
		}
		fmt.Fprintf(b, " %s:", name)
		p.writeTerms(b, c.Terms)
		fmt.Fprintf(b, " %s %s\n", c.Sense, formatCoef(c.RHS))
	}

	b.WriteString("Bounds\n")
	for i, v := range p.Variables {
		name := p.varName(i)
		switch v.Domain {
		case Free:
			fmt.Fprintf(b, " %s free\n", name)
		case Continuous:
			lo, hi := v.Lower, v.Upper
			switch {
			case math.IsInf(lo, -1) && math.IsInf(hi, 1):
				fmt.Fprintf(b, " %s free\n", name)
			case math.IsInf(hi, 1):
				fmt.Fprintf(b, " %s >= %s\n", name, formatCoef(lo))
			case math.IsInf(lo, -1):
				fmt.Fprintf(b, " -inf <= %s <= %s\n", name, formatCoef(hi))
			default:
				fmt.Fprintf(b, " %s <= %s <= %s\n", formatCoef(lo), name, formatCoef(hi))
			}
		}
	}

	if p.NumBinary() > 0 {
		b.WriteString("Binaries\n")
		for i, v := range p.Variables {
			if v.Domain == Binary {
				fmt.Fprintf(b, " %s\n", p.varName(i))
			}
		}
	}

	b.WriteString("End\n")
	return b.Flush()
}

func (p *Problem) writeTerms(b *bufio.Writer, terms []Term) {
	if len(terms) == 0 {
		b.WriteString(" 0 " + p.varName(0))
		return
	}

	for i, t := range terms {
		coef := t.Coef
		sign := "+"
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		if i == 0 && sign == "+" {
			sign = ""
		}
		if sign != "" {
			b.WriteString(" " + sign)
		}
		fmt.Fprintf(b, " %s %s", formatCoef(coef), p.varName(t.Var))
	}
}

func (p *Problem) varName(i int) string {
	if i < len(p.Variables) && p.Variables[i].Name != "" {
		return p.Variables[i].Name
	}
	return "v" + strconv.Itoa(i)
}

func formatCoef(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
