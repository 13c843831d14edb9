package activation

import (
	"context"
	"errors"
	"os/exec"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/hook"
	"github.com/san-kum/cmctl/internal/models"
	"github.com/san-kum/cmctl/internal/params"
	"github.com/san-kum/cmctl/internal/report"
)

var _ = Describe("Machine", func() {
	var (
		ctx      context.Context
		remote   *fakeRemote
		hooks    *fakeHooks
		picker   *fakePicker
		ws       *fakeWorkspace
		reporter *report.Reporter
		host     *models.Host
		deps     Deps
	)

	targetPath := []State{
		StateInit, StateResolveActive, StateRunActivateHook, StateResolveTarget,
		StateRunStartHook, StateLoadTarget, StateDone,
	}
	fallbackPath := []State{
		StateInit, StateResolveActive, StateRunActivateHook, StateResolveTarget,
		StateRunStartHook, StateLoadFallback, StateDone,
	}

	declare := func(decls ...models.Decl) {
		host = models.NewHost(decls, hooks, nil)
		deps.Models = host
	}

	BeforeEach(func() {
		ctx = context.Background()
		remote = &fakeRemote{}
		hooks = &fakeHooks{actions: map[string]func() error{}}
		picker = &fakePicker{}
		ws = &fakeWorkspace{}
		reporter = &report.Reporter{}
		deps = Deps{
			Sender:    remote,
			Params:    fakeParams{},
			Picker:    picker,
			Workspace: ws,
			Hooks:     hooks,
			Reporter:  reporter,
			Product:   models.ProductCarMaker,
		}
		declare()
	})

	Context("without hooks and a single unlocked model", func() {
		BeforeEach(func() {
			declare(
				models.Decl{Name: "Skidpad", Loaded: true},
				models.Decl{Name: "Library", Loaded: true, Locked: true},
			)
		})

		It("starts that model through LOAD_TARGET", func() {
			out := New(deps).Run(ctx)

			Expect(out.Path).To(Equal(targetPath))
			Expect(out.Path).NotTo(ContainElement(StateLoadFallback))
			Expect(out.Failed).To(BeFalse())
			Expect(out.Fallback).To(BeFalse())
			Expect(out.ActivatedModel).To(Equal("Skidpad"))
			Expect(host.Running()).To(Equal("Skidpad"))
			Expect(picker.calls).To(BeEmpty())
		})

		It("restores the last active model first and records the new one", func() {
			New(deps).Run(ctx)

			Expect(remote.commands()).To(Equal([]string{"activemodel -", "activemodel Skidpad"}))
			t, _ := remote.timeoutOf("activemodel -")
			Expect(t).To(Equal(channel.WaitForever))
		})

		It("keeps resolving the same model across repeated attempts", func() {
			m := New(deps)
			for i := 0; i < 3; i++ {
				Expect(m.Run(ctx).ActivatedModel).To(Equal("Skidpad"))
			}
			Expect(remote.last).To(Equal("Skidpad"))
		})

		It("applies workspace variables under the model's name", func() {
			deps.Vars = map[string]string{"ROAD": "dry"}
			New(deps).Run(ctx)

			Expect(ws.applied).To(HaveKeyWithValue("Skidpad", map[string]string{"ROAD": "dry"}))
		})

		It("still starts the model when the remote is unreachable", func() {
			remote.unreachable = true
			out := New(deps).Run(ctx)

			Expect(out.Failed).To(BeFalse())
			Expect(out.ActivatedModel).To(Equal("Skidpad"))
		})
	})

	Context("when the activation hook fails", func() {
		BeforeEach(func() {
			declare(models.Decl{Name: "Skidpad", Loaded: true})
			deps.Params = fakeParams{bundle: params.Bundle{ActivateHook: "set_vehicle", StartHook: "prepare"}}
			hooks.actions["set_vehicle;"] = func() error { return errUndefined }
		})

		It("falls back and retains the hook's error text verbatim", func() {
			out := New(deps).Run(ctx)

			Expect(out.Path).To(Equal(fallbackPath))
			Expect(out.Failed).To(BeTrue())
			Expect(out.Fallback).To(BeTrue())
			Expect(out.LastError).To(Equal(errUndefined.Error()))
			Expect(out.ActivatedModel).To(Equal("generic"))
			Expect(host.Running()).To(Equal("generic"))
		})

		It("skips the start hook", func() {
			New(deps).Run(ctx)
			Expect(hooks.ran()).To(Equal([]string{"set_vehicle;"}))
		})

		It("pushes the message to the remote once without waiting", func() {
			New(deps).Run(ctx)

			line := "setstartfcnfailure " + errUndefined.Error()
			Expect(remote.commands()).To(ContainElement(line))
			t, _ := remote.timeoutOf(line)
			Expect(t).To(Equal(channel.NoWait))
			Expect(reporter.Peek()).To(BeEmpty())
		})
	})

	Context("when the activation hook switches the active model", func() {
		BeforeEach(func() {
			declare(
				models.Decl{Name: "Skidpad", Loaded: true},
				models.Decl{Name: "Endurance", Loaded: true},
				models.Decl{Name: "Acceleration"},
				models.Decl{Name: "Library", Locked: true},
			)
			deps.Params = fakeParams{bundle: params.Bundle{ActivateHook: "pick_vehicle"}}
		})

		It("uses the identity the hook set", func() {
			hooks.actions["pick_vehicle;"] = func() error {
				remote.setActive("Acceleration")
				return nil
			}
			out := New(deps).Run(ctx)

			Expect(out.Failed).To(BeFalse())
			Expect(out.ActivatedModel).To(Equal("Acceleration"))
			Expect(picker.calls).To(BeEmpty())
		})

		It("falls back when the chosen model cannot be loaded", func() {
			hooks.actions["pick_vehicle;"] = func() error {
				remote.setActive("Library")
				return nil
			}
			out := New(deps).Run(ctx)

			Expect(out.Path).To(ContainElements(StateLoadTarget, StateLoadFallback))
			Expect(out.Path[len(out.Path)-1]).To(Equal(StateDone))
			Expect(out.Fallback).To(BeTrue())
			Expect(out.LastError).To(ContainSubstring("locked"))
			Expect(host.Running()).To(Equal("generic"))
		})
	})

	Context("resolving the target", func() {
		It("fails with \"no model loaded\" when nothing is loaded", func() {
			declare(models.Decl{Name: "Skidpad"})
			out := New(deps).Run(ctx)

			Expect(out.Path).To(Equal(fallbackPath))
			Expect(out.LastError).To(Equal("no model loaded"))
			Expect(host.Running()).To(Equal("generic"))
			Expect(remote.commands()).To(ContainElement("setstartfcnfailure no model loaded"))
		})

		It("fails with \"no model selected\" when the picker returns nothing", func() {
			declare(
				models.Decl{Name: "Skidpad", Loaded: true},
				models.Decl{Name: "Endurance", Loaded: true},
			)
			out := New(deps).Run(ctx)

			Expect(picker.calls).To(Equal([][]string{{"Skidpad", "Endurance"}}))
			Expect(out.LastError).To(Equal("no model selected"))
			Expect(out.Fallback).To(BeTrue())
			Expect(host.Running()).To(Equal("generic"))
		})

		It("uses the picker's choice among several models", func() {
			declare(
				models.Decl{Name: "Skidpad", Loaded: true},
				models.Decl{Name: "Endurance", Loaded: true},
			)
			picker.choice = "Endurance"
			out := New(deps).Run(ctx)

			Expect(out.ActivatedModel).To(Equal("Endurance"))
			Expect(out.Target.Name).To(Equal("Endurance"))
		})

		It("rejects a choice that is not a candidate", func() {
			declare(
				models.Decl{Name: "Skidpad", Loaded: true},
				models.Decl{Name: "Endurance", Loaded: true},
			)
			picker.choice = "Autocross"
			out := New(deps).Run(ctx)

			Expect(out.LastError).To(Equal(ErrInvalidSelection.Error()))
		})

		It("prefers the remembered model when it is still loaded", func() {
			declare(
				models.Decl{Name: "Skidpad", Loaded: true},
				models.Decl{Name: "Endurance", Loaded: true},
			)
			remote.setActive("Endurance")
			out := New(deps).Run(ctx)

			Expect(picker.calls).To(BeEmpty())
			Expect(out.ActivatedModel).To(Equal("Endurance"))
		})

		It("asks the picker when the remembered model is gone", func() {
			declare(
				models.Decl{Name: "Skidpad", Loaded: true},
				models.Decl{Name: "Endurance", Loaded: true},
			)
			remote.setActive("Autocross")
			picker.choice = "Skidpad"
			out := New(deps).Run(ctx)

			Expect(picker.calls).To(HaveLen(1))
			Expect(out.ActivatedModel).To(Equal("Skidpad"))
		})
	})

	Context("hooks", func() {
		BeforeEach(func() {
			declare(models.Decl{Name: "Skidpad", Loaded: true})
		})

		It("normalizes scripts and binds the stop hook", func() {
			deps.Params = fakeParams{bundle: params.Bundle{
				ActivateHook: "a  ",
				StartHook:    "b;",
				StopHook:     "c\n",
			}}
			New(deps).Run(ctx)
			Expect(hooks.ran()).To(Equal([]string{"a;", "b;"}))

			Expect(host.Stop(ctx)).To(Succeed())
			Expect(hooks.ran()).To(Equal([]string{"a;", "b;", "c;"}))
		})

		It("keeps only the latest failure message", func() {
			reporter.Record("stale message")
			deps.Params = fakeParams{bundle: params.Bundle{StartHook: "prepare"}}
			hooks.actions["prepare;"] = func() error { return errors.New("prepare failed") }

			out := New(deps).Run(ctx)

			Expect(out.LastError).To(Equal("prepare failed"))
			Expect(remote.commands()).To(ContainElement("setstartfcnfailure prepare failed"))
			Expect(remote.commands()).NotTo(ContainElement("setstartfcnfailure stale message"))
		})

		It("fails the attempt when the parameter provider fails", func() {
			deps.Params = fakeParams{err: errors.New("vehicle parameters: remote: no vehicle")}
			out := New(deps).Run(ctx)

			Expect(out.Path).To(Equal(fallbackPath))
			Expect(out.LastError).To(Equal("vehicle parameters: remote: no vehicle"))
		})
	})

	It("picks the placeholder of the configured product", func() {
		deps.Product = models.ProductTruckMaker
		out := New(deps).Run(ctx)

		Expect(out.ActivatedModel).To(Equal("generic_truck"))
		Expect(host.Running()).To(Equal("generic_truck"))
	})

	It("unloads a leftover placeholder before loading the target", func() {
		declare(models.Decl{Name: "Skidpad", Loaded: true})
		m := New(deps)

		Expect(m.Run(ctx).Fallback).To(BeFalse())
		Expect(host.Load(ctx, "generic")).To(Succeed())
		m.Run(ctx)

		for _, d := range host.List() {
			if d.Name == "generic" {
				Expect(d.Loaded).To(BeFalse())
			}
		}
	})

	It("serializes concurrent attempts", func() {
		declare(models.Decl{Name: "Skidpad", Loaded: true})
		slow := &slowParams{}
		deps.Params = slow
		m := New(deps)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				Expect(m.Run(ctx).ActivatedModel).To(Equal("Skidpad"))
			}()
		}
		wg.Wait()

		Expect(slow.maxSeen.Load()).To(BeEquivalentTo(1))
	})
})

var _ = Describe("State", func() {
	DescribeTable("allowed transitions",
		func(from, to State, want bool) {
			Expect(from.CanTransition(to)).To(Equal(want))
		},
		Entry("init to resolve active", StateInit, StateResolveActive, true),
		Entry("start hook to target", StateRunStartHook, StateLoadTarget, true),
		Entry("start hook to fallback", StateRunStartHook, StateLoadFallback, true),
		Entry("target to fallback", StateLoadTarget, StateLoadFallback, true),
		Entry("target to done", StateLoadTarget, StateDone, true),
		Entry("fallback to target", StateLoadFallback, StateLoadTarget, false),
		Entry("skip resolution", StateInit, StateLoadTarget, false),
		Entry("leave done", StateDone, StateInit, false),
	)

	It("names every state", func() {
		Expect(StateRunActivateHook.String()).To(Equal("RUN_ACTIVATE_HOOK"))
		Expect(StateDone.String()).To(Equal("DONE"))
		Expect(StateDone.Terminal()).To(BeTrue())
		Expect(State(42).String()).To(Equal("State(42)"))
	})
})

var _ = Describe("Normalize", func() {
	DescribeTable("terminates scripts",
		func(in, want string) {
			Expect(Normalize(in)).To(Equal(want))
		},
		Entry("plain", "run_it", "run_it;"),
		Entry("already terminated", "run_it;", "run_it;"),
		Entry("trailing space", "run_it \t\n", "run_it;"),
		Entry("blank", "   ", ""),
		Entry("empty", "", ""),
		Entry("background job", "sleep 1 &", "sleep 1 &"),
		Entry("and list", "a && b", "a && b;"),
		Entry("continuation", `run_it \`, `run_it \`),
		Entry("multi-line", "a\nb\n", "a\nb\n"),
		Entry("here-doc", "cat <<EOF\nx\nEOF", "cat <<EOF\nx\nEOF"),
	)

	DescribeTable("keeps shell scripts runnable",
		func(script string) {
			if _, err := exec.LookPath(hook.DefaultShell); err != nil {
				Skip("no sh on PATH")
			}
			Expect(hook.Shell{}.Run(context.Background(), script)).To(Succeed())
			Expect(hook.Shell{}.Run(context.Background(), Normalize(script))).To(Succeed())
		},
		Entry("plain", "true"),
		Entry("background job", "true &"),
		Entry("pipeline", "echo x | cat"),
		Entry("here-doc", "cat <<EOF\nx\nEOF"),
		Entry("trailing newline", "true\n"),
	)
})

var _ = Describe("errors", func() {
	It("exposes selection kinds and hook causes", func() {
		var err error = &SelectionError{Kind: ErrNoModelLoaded}
		Expect(errors.Is(err, ErrNoModelLoaded)).To(BeTrue())
		Expect(err.Error()).To(Equal("no model loaded"))

		cause := errors.New("boom")
		err = &HookError{Hook: "start", Script: "x;", Err: cause}
		Expect(errors.Is(err, cause)).To(BeTrue())
		Expect(err.Error()).To(Equal("start hook: boom"))
		Expect(failureMessage(err)).To(Equal("boom"))
	})
})
