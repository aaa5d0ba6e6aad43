package channel

import (
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// dropAllProgram is a classic BPF program that accepts zero bytes of every packet.
func dropAllProgram() ([]bpf.RawInstruction, error) {
	return bpf.Assemble([]bpf.Instruction{
		bpf.RetConstant{Val: 0},
	})
}

func attachDropFilter(fd int) error {
	raw, err := dropAllProgram()
	if err != nil {
		return err
	}
	filter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	return unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog)
}
